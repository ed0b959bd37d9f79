package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deepshield/internal/api"
	"deepshield/internal/config"
	"deepshield/internal/store"
)

func newPostsCommand(ctx *commandContext) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Inspect posts and their analysis state",
	}
	postsCmd.AddCommand(newPostsListCommand(ctx))
	postsCmd.AddCommand(newPostsShowCommand(ctx))
	return postsCmd
}

func newPostsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		username string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				opts := store.ListOptions{Limit: limit}
				for _, value := range statuses {
					status, ok := store.ParseStatus(value)
					if !ok {
						return fmt.Errorf("unknown status %q", value)
					}
					opts.Statuses = append(opts.Statuses, status)
				}
				if username = strings.TrimSpace(username); username != "" {
					user, err := st.UserByUsername(cmd.Context(), strings.ToLower(username))
					if err != nil {
						return err
					}
					if user == nil {
						return fmt.Errorf("user %q not found", username)
					}
					opts.CreatorID = user.ID
				}

				items, err := api.NewPostService(st).ListFiltered(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No posts")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPostsTable(items))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by analysis status (repeatable)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Only posts created by this username")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of posts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func renderPostsTable(items []api.Post) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			api.ShortID(item.ID),
			truncate(item.Title, 32),
			item.Profiles.Username,
			item.MediaType,
			api.VerdictLabel(item),
			strconv.Itoa(item.LikesCount),
			strconv.Itoa(item.CommentsCount),
			formatWhen(item.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Creator", "Media", "Analysis", "Likes", "Comments", "Created"},
		rows,
		5, 6,
	)
}

func newPostsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post with comments and frame verdicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				reads := api.NewPostService(st)
				detail, err := resolvePost(cmd, reads, st, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				printPostDetail(cmd, detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

// resolvePost accepts a full id or a unique id prefix as printed by posts list.
func resolvePost(cmd *cobra.Command, reads *api.PostService, st *store.Store, id string) (*api.PostDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("post id is required")
	}
	if post, err := st.GetPost(cmd.Context(), id); err != nil {
		return nil, err
	} else if post == nil {
		all, err := st.ListPosts(cmd.Context(), store.ListOptions{})
		if err != nil {
			return nil, err
		}
		var matches []string
		for _, candidate := range all {
			if strings.HasPrefix(candidate.ID, id) {
				matches = append(matches, candidate.ID)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("post %s not found", id)
		case 1:
			id = matches[0]
		default:
			return nil, fmt.Errorf("post id prefix %s is ambiguous (%d matches)", id, len(matches))
		}
	}
	return reads.Describe(cmd.Context(), id)
}

func printPostDetail(cmd *cobra.Command, detail *api.PostDetail) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader(detail.Title, colorize))
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "ID:", detail.ID)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Creator:", creatorLabel(detail.Profiles))
	fmt.Fprintf(out, "  %-*s %s (%s)\n", statusLabelWidth, "Media:", detail.MediaURL, detail.MediaType)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Created:", formatWhen(detail.CreatedAt))
	fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Likes:", detail.LikesCount)
	fmt.Fprintln(out, renderStatusLine("Analysis", analysisKind(detail.AnalysisStatus), analysisMessage(detail), colorize))
	if text := strings.TrimSpace(detail.Content); text != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, text)
	}

	if analysis := detail.DeepfakeAnalysis; analysis != nil && len(analysis.FramesAnalysis) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Frames", colorize))
		rows := make([][]string, 0, len(analysis.FramesAnalysis))
		for _, frame := range analysis.FramesAnalysis {
			verdict := "real"
			if frame.IsFake {
				verdict = "fake"
			}
			rows = append(rows, []string{frame.Frame, strconv.FormatFloat(frame.Confidence, 'f', 3, 64), verdict})
		}
		fmt.Fprintln(out, renderTable([]string{"Frame", "Confidence", "Verdict"}, rows, 1))
	}

	if len(detail.Comments) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader(fmt.Sprintf("Comments (%d)", len(detail.Comments)), colorize))
		for _, comment := range detail.Comments {
			fmt.Fprintf(out, "  %s  %s: %s\n", formatWhen(comment.CreatedAt), creatorLabel(comment.Profiles), comment.Content)
		}
	}
}

func analysisKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "processing":
		return statusWarn
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

func analysisMessage(detail *api.PostDetail) string {
	switch detail.AnalysisStatus {
	case "failed":
		if detail.AnalysisError != "" {
			return "failed: " + detail.AnalysisError
		}
		return "failed"
	case "none":
		return "not applicable"
	default:
		return api.VerdictLabel(detail.Post)
	}
}

func creatorLabel(p api.Profile) string {
	if p.DisplayName != "" && p.DisplayName != p.Username {
		return fmt.Sprintf("%s <%s>", p.DisplayName, p.Username)
	}
	return p.Username
}

func formatWhen(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
