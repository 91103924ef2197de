package graph

// Schema is the public contract of the API. Author.id is nullable because a
// book whose author record is gone resolves to a placeholder without an id.
const Schema = `
schema {
	query: Query
	mutation: Mutation
}

type Book {
	id: ID!
	title: String!
	published: Int
	genres: [String!]!
	author: Author
}

type Author {
	id: ID
	name: String!
	born: Int
	bookCount: Int!
	books: [Book!]!
}

type User {
	id: ID!
	username: String!
	favoriteGenre: String!
}

type Token {
	value: String!
}

type Query {
	booksCount: Int!
	authorsCount: Int!
	allBooks(author: String, genre: String): [Book!]!
	allAuthors: [Author!]!
	findBook(title: String!): Book
	findAuthor(name: String!): Author
	me: User
}

type Mutation {
	addBook(title: String!, published: Int, author: String!, genres: [String!]!): Book
	editAuthor(name: String!, setBornTo: Int!): Author
	createUser(username: String!, favoriteGenre: String!, password: String): User
	login(username: String!, password: String!): Token
}
`
