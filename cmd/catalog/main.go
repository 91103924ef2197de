package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookgraph/internal/client"
)

var (
	endpoint  string
	tokenPath string

	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:           "catalog",
	Short:         "Browse and edit the library catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if tokenPath == "" {
			p, err := client.DefaultTokenPath()
			if err != nil {
				return err
			}
			tokenPath = p
		}
		api = client.New(endpoint, client.FileTokenStore{Path: tokenPath}, nil)
		return nil
	},
}

func main() {
	def := os.Getenv("BOOKGRAPH_ENDPOINT")
	if def == "" {
		def = "http://localhost:4000/graphql"
	}
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", def, "GraphQL endpoint")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token-file", "", "where the login token is kept")

	rootCmd.AddCommand(booksCmd(), authorsCmd(), meCmd(), loginCmd(), logoutCmd(),
		createUserCmd(), addBookCmd(), setBornCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func booksCmd() *cobra.Command {
	var f client.BookFilter
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books, optionally by author or genre",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := api.Books(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tAUTHOR\tPUBLISHED\tGENRES")
			for _, b := range books {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Title, b.Author.Name, optInt(b.Published), strings.Join(b.Genres, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.Author, "author", "", "only books by this author")
	cmd.Flags().StringVar(&f.Genre, "genre", "", "only books in this genre")
	return cmd
}

func authorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authors",
		Short: "List authors with birth year and book count",
		RunE: func(cmd *cobra.Command, args []string) error {
			authors, err := api.Authors(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBORN\tBOOKS")
			for _, a := range authors {
				fmt.Fprintf(w, "%s\t%s\t%d\n", a.Name, optInt(a.Born), a.BookCount)
			}
			return w.Flush()
		},
	}
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			if me == nil {
				fmt.Println("not logged in")
				return nil
			}
			fmt.Printf("%s (favorite genre: %s)\n", me.Username, me.FavoriteGenre)
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				p, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if err := api.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Println("logged in as", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return api.Logout()
		},
	}
}

func createUserCmd() *cobra.Command {
	var username, genre, password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := api.CreateUser(cmd.Context(), username, genre, password)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&genre, "genre", "g", "", "favorite genre")
	cmd.Flags().StringVarP(&password, "password", "p", "", "optional personal password")
	return cmd
}

func addBookCmd() *cobra.Command {
	var (
		in        client.NewBook
		published int
	)
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book (requires login)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("published") {
				in.Published = &published
			}
			b, err := api.AddBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("added %q by %s\n", b.Title, b.Author.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&in.Author, "author", "a", "", "author name")
	cmd.Flags().IntVar(&published, "published", 0, "publication year")
	cmd.Flags().StringArrayVarP(&in.Genres, "genre", "g", nil, "genre (repeatable)")
	return cmd
}

func setBornCmd() *cobra.Command {
	var (
		name string
		year int
	)
	cmd := &cobra.Command{
		Use:   "set-born",
		Short: "Set an author's birth year (requires login)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := api.SetBorn(cmd.Context(), name, year)
			if err != nil {
				return err
			}
			if a == nil {
				return fmt.Errorf("no author named %q", name)
			}
			fmt.Printf("%s born %s\n", a.Name, optInt(a.Born))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "author name")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "birth year")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
