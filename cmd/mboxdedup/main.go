// mboxdedup finds and removes duplicate messages in mbox archives.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/avikalpa/mboxdedup/internal/dedup"
	"github.com/avikalpa/mboxdedup/internal/demoenv"
	"github.com/avikalpa/mboxdedup/internal/discover"
	"github.com/avikalpa/mboxdedup/internal/hashcache"
	"github.com/avikalpa/mboxdedup/internal/history"
)

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if len(os.Args) < 2 {
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "profiles":
		err = profilesCmd()
	case "folders":
		err = foldersCmd(os.Args[2:])
	case "scan":
		err = scanCmd(ctx, os.Args[2:])
	case "show":
		err = showCmd(ctx, os.Args[2:])
	case "clear-cache":
		err = clearCacheCmd(ctx)
	case "demo":
		err = demoCmd(ctx, os.Args[2:])
	case "history":
		err = historyCmd(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Println("Usage: mboxdedup <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  profiles                             list Thunderbird profiles from profiles.ini")
	fmt.Println("  folders [--profile name]             list mailbox files for a profile")
	fmt.Println("  scan [--profile p|--path f ...] [--criteria c] [--auto-clean|--interactive]")
	fmt.Println("                                       find duplicate groups, optionally delete them")
	fmt.Println("  show --group N --member M [...]      print one message from a duplicate group")
	fmt.Println("  clear-cache                          drop every cached digest")
	fmt.Println("  demo [--auto-clean]                  scan a generated mailbox with known duplicates")
	fmt.Println("  history [--limit N]                  list recorded scans (needs MBOXDEDUP_PG_DSN)")
	fmt.Println()
	fmt.Println("Criteria: strict (default), content, headers, subject-sender")
}

func profilesCmd() error {
	profiles, err := discover.Profiles(discover.Root())
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Printf("No profiles found under %s\n", discover.Root())
		return nil
	}
	fmt.Printf("%-12s %-8s %s\n", "Name", "Default", "Path")
	for _, p := range profiles {
		def := ""
		if p.Default {
			def = "yes"
		}
		fmt.Printf("%-12s %-8s %s\n", p.Name, def, p.AbsolutePath)
	}
	return nil
}

func foldersCmd(args []string) error {
	fs := pflag.NewFlagSet("folders", pflag.ExitOnError)
	profileName := fs.String("profile", "", "profile name or path")
	fs.Parse(args)

	profile, err := discover.Resolve(discover.Root(), *profileName)
	if err != nil {
		return err
	}
	boxes, err := discover.Mailboxes(profile)
	if err != nil {
		return err
	}
	if len(boxes) == 0 {
		fmt.Printf("No mailboxes found under %s\n", profile.AbsolutePath)
		return nil
	}
	fmt.Printf("Mailboxes for %s (%s):\n", profile.Name, profile.AbsolutePath)
	for _, b := range boxes {
		fmt.Printf("- %s [%s]\n", b.Name, byteSize(b.Size))
	}
	return nil
}

type scanFlags struct {
	fs          *pflag.FlagSet
	profileName *string
	folderLike  *string
	paths       *[]string
	criteria    *string
	workers     *int
	chunkSize   *int
	noCache     *bool
	verbose     *bool
}

func newScanFlags(name string) *scanFlags {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	return &scanFlags{
		fs:          fs,
		profileName: fs.String("profile", "", "profile name or path"),
		folderLike:  fs.String("folder", "", "restrict to folders containing this name"),
		paths:       fs.StringArray("path", nil, "mailbox file to scan (repeatable, bypasses profile discovery)"),
		criteria:    fs.String("criteria", "strict", "duplicate criteria: strict|content|headers|subject-sender"),
		workers:     fs.Int("workers", dedup.DefaultWorkers, "max concurrent folder scans"),
		chunkSize:   fs.Int("chunk-size", dedup.DefaultChunkSize, "messages per scan chunk"),
		noCache:     fs.Bool("no-cache", false, "skip the persistent digest cache"),
		verbose:     fs.Bool("verbose", false, "log chunk progress"),
	}
}

func (f *scanFlags) sources() ([]dedup.Source, error) {
	if len(*f.paths) > 0 {
		var sources []dedup.Source
		for _, p := range *f.paths {
			sources = append(sources, dedup.Source{Path: p, DisplayName: filepath.Base(p)})
		}
		return sources, nil
	}
	profile, err := discover.Resolve(discover.Root(), *f.profileName)
	if err != nil {
		return nil, err
	}
	boxes, err := discover.Mailboxes(profile)
	if err != nil {
		return nil, err
	}
	boxes = discover.Filter(boxes, *f.folderLike)
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no folders match %q", *f.folderLike)
	}
	var sources []dedup.Source
	for _, b := range boxes {
		sources = append(sources, dedup.Source{Path: b.Path, DisplayName: b.Name})
	}
	return sources, nil
}

func (f *scanFlags) run(ctx context.Context) (*dedup.ScanResult, []dedup.Source, *hashcache.Cache, error) {
	if *f.verbose {
		log.SetLevel(log.DebugLevel)
	}
	sources, err := f.sources()
	if err != nil {
		return nil, nil, nil, err
	}
	method, err := dedup.ParseMethod(*f.criteria)
	if err != nil {
		return nil, nil, nil, err
	}

	var cache *hashcache.Cache
	if !*f.noCache {
		cache, err = hashcache.Open(cachePath())
		if err != nil {
			log.Warnf("digest cache unavailable: %v", err)
			cache = nil
		}
	}

	result, err := dedup.Scan(ctx, sources, dedup.Options{
		Method:    method,
		Workers:   *f.workers,
		ChunkSize: *f.chunkSize,
		Cache:     cache,
		Progress: func(c dedup.ScanChunk) {
			log.Debugf("%s: %d/%d messages", c.Source.DisplayName, c.Processed, c.Total)
		},
	})
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, nil, nil, err
	}
	return result, sources, cache, nil
}

func scanCmd(ctx context.Context, args []string) error {
	f := newScanFlags("scan")
	autoClean := f.fs.Bool("auto-clean", false, "delete duplicates keeping the earliest message of each group")
	interactive := f.fs.Bool("interactive", false, "choose which message to keep per group")
	limit := f.fs.Int("limit", 0, "max groups to display (0 = all)")
	f.fs.Parse(args)

	started := time.Now()
	result, sources, cache, err := f.run(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	printScan(result, sources, *limit)
	scanID := recordScan(ctx, result, sources, started)

	if result.TotalGroups == 0 {
		return nil
	}
	if *autoClean {
		report := dedup.Delete(ctx, result.Groups, allGroups(result), nil)
		printReport(report)
		recordClean(ctx, scanID, "keep-first", report)
	} else if *interactive {
		report := dedup.Delete(ctx, result.Groups, allGroups(result), stdinSelector(result))
		printReport(report)
		recordClean(ctx, scanID, "interactive", report)
	}
	return nil
}

func showCmd(ctx context.Context, args []string) error {
	f := newScanFlags("show")
	group := f.fs.Int("group", 0, "duplicate group index (0-based)")
	member := f.fs.Int("member", 0, "message index within the group (0-based)")
	f.fs.Parse(args)

	result, _, cache, err := f.run(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	content, err := dedup.Preview(result.Groups, *group, *member)
	if err != nil {
		return err
	}
	for _, name := range []string{"From", "To", "Subject", "Date", "Message-Id"} {
		if v, ok := content.Headers[name]; ok {
			fmt.Printf("%s: %s\n", name, v)
		}
	}
	fmt.Println()
	for _, part := range content.Parts {
		text := part.Text
		if strings.HasPrefix(part.ContentType, "text/html") {
			text = dedup.StripHTML(text)
		}
		fmt.Println(text)
	}
	return nil
}

func clearCacheCmd(ctx context.Context) error {
	cache, err := hashcache.Open(cachePath())
	if err != nil {
		return err
	}
	defer cache.Close()
	if err := cache.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Digest cache cleared.")
	return nil
}

func demoCmd(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("demo", pflag.ExitOnError)
	autoClean := fs.Bool("auto-clean", false, "also delete the generated duplicates")
	fs.Parse(args)

	dir, err := os.MkdirTemp("", "mboxdedup-demo-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	boxes, err := demoenv.Write(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Created demo profile at %s\n\n", dir)

	var sources []dedup.Source
	for _, b := range boxes {
		sources = append(sources, dedup.Source{Path: b.Path, DisplayName: b.DisplayName})
	}
	// The demo always hashes fresh; caching temp files would pollute the cache.
	result, err := dedup.Scan(ctx, sources, dedup.Options{Method: dedup.Strict})
	if err != nil {
		return err
	}
	printScan(result, sources, 0)
	if *autoClean {
		report := dedup.Delete(ctx, result.Groups, allGroups(result), nil)
		printReport(report)
	}
	return nil
}

func historyCmd(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ExitOnError)
	limit := fs.Int("limit", 20, "max scans to list")
	fs.Parse(args)

	store, err := history.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.RecentScans(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded scans.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Started\tCriteria\tFolders\tMessages\tGroups\tRedundant\tErrors\n")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Criteria, r.Folders, r.Messages, r.Groups, r.Redundant, r.SourceErrors)
	}
	return w.Flush()
}

func printScan(result *dedup.ScanResult, sources []dedup.Source, limit int) {
	for _, e := range result.SourceErrors {
		fmt.Printf("Failed: %s: %s\n", e.Source, e.Err)
	}
	fmt.Printf("Scanned %d folders, %d messages: %d duplicate groups (%d duplicate emails)\n",
		len(sources)-len(result.SourceErrors), result.TotalMessages, result.TotalGroups, result.TotalRedundant)
	if result.TotalGroups == 0 {
		return
	}
	groups := result.Groups
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	for i, g := range groups {
		fmt.Printf("\nGroup %d (%d messages, digest %s)\n", i+1, len(g.Messages), g.Digest)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Index\tDate\tFrom\tSubject\tFolder\n")
		for j, m := range g.Messages {
			idx := strconv.Itoa(j + 1)
			if j == 0 {
				idx += " (keep)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				idx, displayDate(m), truncate(m.From, 40), truncate(m.Subject, 60), m.Folder)
		}
		w.Flush()
	}
}

func printReport(report dedup.DeletionReport) {
	fmt.Printf("\nDeleted %d duplicate emails\n", report.Deleted)
	if len(report.Errors) == 0 {
		return
	}
	fmt.Println("Some errors occurred during deletion:")
	for i, e := range report.Errors {
		if i == 5 {
			fmt.Printf("  ... and %d more errors\n", len(report.Errors)-5)
			break
		}
		fmt.Printf("  - %s\n", e)
	}
}

// stdinSelector prompts for the member to keep in each group, 1-based like
// the listing; anything invalid keeps the default.
func stdinSelector(result *dedup.ScanResult) dedup.KeepSelector {
	reader := bufio.NewReader(os.Stdin)
	return func(groupIndex int, g dedup.DuplicateGroup) int {
		fmt.Printf("Group %d: enter the index of the email to keep [1]: ", groupIndex+1)
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(g.Messages) {
			return 0
		}
		return n - 1
	}
}

func allGroups(result *dedup.ScanResult) []int {
	indices := make([]int, len(result.Groups))
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func recordScan(ctx context.Context, result *dedup.ScanResult, sources []dedup.Source, started time.Time) uuid.UUID {
	id := uuid.New()
	if !history.Enabled() {
		return id
	}
	store, err := history.Open(ctx)
	if err != nil {
		log.Warnf("scan history: %v", err)
		return id
	}
	defer store.Close()
	err = store.RecordScan(ctx, history.ScanRun{
		ID:           id,
		Criteria:     result.Method.String(),
		Folders:      len(sources),
		Messages:     result.TotalMessages,
		Groups:       result.TotalGroups,
		Redundant:    result.TotalRedundant,
		SourceErrors: len(result.SourceErrors),
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})
	if err != nil {
		log.Warnf("scan history: %v", err)
	}
	return id
}

func recordClean(ctx context.Context, scanID uuid.UUID, policy string, report dedup.DeletionReport) {
	if !history.Enabled() {
		return
	}
	store, err := history.Open(ctx)
	if err != nil {
		log.Warnf("clean history: %v", err)
		return
	}
	defer store.Close()
	err = store.RecordClean(ctx, history.CleanRun{
		ID:         uuid.New(),
		ScanID:     scanID,
		KeepPolicy: policy,
		Deleted:    report.Deleted,
		Errors:     len(report.Errors),
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Warnf("clean history: %v", err)
	}
}

func cachePath() string {
	if p := os.Getenv("MBOXDEDUP_CACHE"); p != "" {
		return p
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "mboxdedup", "digests.db")
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit && exp < 5 {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func displayDate(m dedup.MessageRecord) string {
	if m.Date.IsZero() {
		return m.DateRaw
	}
	return m.Date.In(time.Local).Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
