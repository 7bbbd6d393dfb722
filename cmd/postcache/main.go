package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goforj/postcache"
	"github.com/goforj/postcache/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

// newStore loads the config, opens the snapshot backend and restores the
// store. The caller must call the returned close function.
func newStore(ctx context.Context) (*postcache.Store, func(), error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	slot, closeSlot, err := cfg.OpenSnapshotStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	closeFn := func() {
		if err := closeSlot(); err != nil {
			logger.Warn("closing snapshot store", "error", err)
		}
	}

	store, err := postcache.New(ctx, cfg.NewAPI(logger), cfg.StoreOptions(slot, logger)...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("initializing store: %w", err)
	}
	return store, closeFn, nil
}

var rootCmd = &cobra.Command{
	Use:           "postcache",
	Short:         "Cached client for a posts, users and comments API",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Init(path, config.Default()); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", path)
		return nil
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		user, _ := cmd.Flags().GetInt("user")

		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if _, err := store.FetchPosts(cmd.Context(), force); err != nil {
			return err
		}
		if user != 0 {
			if _, err := store.FetchUsers(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.SetSelectedUserID(user); err != nil {
				return err
			}
		}
		printPosts(cmd.OutOrStdout(), store.FilteredPosts())
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		users, err := store.FetchUsers(cmd.Context(), force)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tCOMPANY")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Email, u.Company.Name)
		}
		return w.Flush()
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <postID>",
	Short: "List the comments of a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID(args[0])
		if err != nil {
			return err
		}

		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		comments, err := store.FetchComments(cmd.Context(), postID)
		if err != nil {
			return err
		}
		if len(comments) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No comments.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME")
		for _, c := range comments {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Email, c.Name)
		}
		return w.Flush()
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a post",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		body, _ := cmd.Flags().GetString("body")
		user, _ := cmd.Flags().GetInt("user")

		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		post, err := store.CreatePost(cmd.Context(), postcache.PostInput{Title: title, Body: body, UserID: user})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created post %d\n", post.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <postID>",
	Short: "Delete a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID(args[0])
		if err != nil {
			return err
		}

		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.DeletePost(cmd.Context(), postID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %d\n", postID)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize posts per user",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if _, err := store.FetchPosts(cmd.Context(), false); err != nil {
			return err
		}
		if _, err := store.FetchUsers(cmd.Context(), false); err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), store.PostsStats())
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:       "retry <posts|users>",
	Short:     "Force a re-read of a collection",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(postcache.CollectionPosts), string(postcache.CollectionUsers)},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		kind := postcache.Collection(args[0])
		if err := store.RetryFetch(cmd.Context(), kind); err != nil {
			return err
		}
		st := store.State()
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d posts, %d users\n", len(st.Posts), len(st.Users))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		store.ClearErrors()
		store.ClearCache()
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		return nil
	},
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q: %w", s, postcache.ErrInvalidArgument)
	}
	return id, nil
}

func printPosts(out io.Writer, posts []postcache.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(w, "%d\t%d\t%s\n", p.ID, p.UserID, p.Title)
	}
	_ = w.Flush()
}

func printStats(out io.Writer, s postcache.Stats) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Posts:\t%d\n", s.TotalPosts)
	fmt.Fprintf(w, "Users:\t%d\n", s.TotalUsers)
	fmt.Fprintf(w, "Average per user:\t%s\n", s.AveragePostsPerUser)
	if s.MostActiveUser != nil {
		fmt.Fprintf(w, "Most active:\t%s (%d)\n", s.MostActiveUser.Name, s.MostActiveUser.ID)
	} else {
		fmt.Fprintln(w, "Most active:\t-")
	}
	_ = w.Flush()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(postsCmd)
	postsCmd.Flags().BoolP("force", "f", false, "Ignore the freshness window")
	postsCmd.Flags().IntP("user", "u", 0, "Only show posts by this user id")

	rootCmd.AddCommand(usersCmd)
	usersCmd.Flags().BoolP("force", "f", false, "Ignore the freshness window")

	rootCmd.AddCommand(commentsCmd)

	rootCmd.AddCommand(createCmd)
	createCmd.Flags().String("title", "", "Post title")
	createCmd.Flags().String("body", "", "Post body")
	createCmd.Flags().IntP("user", "u", 0, "Owning user id")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("body")

	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(clearCmd)
}
