package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattjoyce/hubgate/internal/config"
	"github.com/mattjoyce/hubgate/internal/doctor"
	"github.com/mattjoyce/hubgate/internal/queue"
	"github.com/mattjoyce/hubgate/internal/signature"
	"github.com/mattjoyce/hubgate/internal/storage"
	"github.com/mattjoyce/hubgate/internal/tui"
)

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate config check [--config PATH] [--json] [--strict]")
			fmt.Println("Validate configuration syntax, secrets, and integrity.")
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate config lock [--config PATH] [--dry-run]")
			fmt.Println("Record BLAKE3 hashes of the config and .env in .checksums.")
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hubgate config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	var result *doctor.Result
	cfg, err := resolveConfig(*configPath)
	if err != nil {
		result = &doctor.Result{Errors: []doctor.Issue{{Category: "load", Message: err.Error()}}}
	} else {
		result = doctor.New(cfg).Validate()
	}

	if *jsonOut {
		out, ferr := doctor.FormatJSON(result)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "Failed to render result: %v\n", ferr)
			return 1
		}
		fmt.Println(out)
	} else if result.Valid {
		fmt.Print(doctor.FormatHuman(result))
	} else {
		fmt.Fprint(os.Stderr, doctor.FormatHuman(result))
	}

	if !result.Valid || (*strict && len(result.Warnings) > 0) {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("config lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing .checksums")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := *configPath
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		path = discovered
	}

	report, err := config.Lock(path, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	for _, f := range report.Files {
		if !f.Exists {
			fmt.Printf("  skipped %s (missing)\n", f.Filename)
			continue
		}
		fmt.Printf("  %s  %s\n", f.Hash, f.Filename)
	}
	if *dryRun {
		fmt.Printf("Dry run: %s not written\n", report.ChecksumPath)
		return 0
	}
	fmt.Printf("Wrote %s\n", report.ChecksumPath)
	return 0
}

// --- job ---

func runJobNoun(args []string) int {
	if len(args) < 1 {
		printJobNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJobNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate job list [--config PATH] [--receiver NAME] [--limit N] [--json]")
			fmt.Println("List queued webhook deliveries, newest first.")
			return 0
		}
		return runJobList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate job show <job_id> [--config PATH] [--json]")
			fmt.Println("Show one delivery including its payload.")
			return 0
		}
		return runJobShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown job action: %s\n", action)
		return 1
	}
}

func printJobNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hubgate job <action>")
	fmt.Fprintln(w, "Actions: list, show")
}

// openQueue loads config and opens the state database for read commands.
func openQueue(ctx context.Context, configPath string) (*queue.Queue, func(), error) {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return queue.New(db, cfg.Service.DedupeTTL), func() { _ = db.Close() }, nil
}

type jobView struct {
	ID           string          `json:"id"`
	Receiver     string          `json:"receiver"`
	EventType    string          `json:"event_type"`
	Status       string          `json:"status"`
	Verification string          `json:"verification"`
	SubmittedBy  string          `json:"submitted_by"`
	DedupeKey    string          `json:"dedupe_key,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	CreatedAt    string          `json:"created_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func toJobView(j *queue.Job, withPayload bool) jobView {
	v := jobView{
		ID:           j.ID,
		Receiver:     j.Receiver,
		EventType:    j.EventType,
		Status:       string(j.Status),
		Verification: j.Verification,
		SubmittedBy:  j.SubmittedBy,
		CreatedAt:    j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if j.DedupeKey != nil {
		v.DedupeKey = *j.DedupeKey
	}
	if j.RequestID != nil {
		v.RequestID = *j.RequestID
	}
	if withPayload && json.Valid(j.Payload) {
		v.Payload = json.RawMessage(j.Payload)
	}
	return v
}

func runJobList(args []string) int {
	fs := flag.NewFlagSet("job list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	receiver := fs.String("receiver", "", "Only show jobs for this receiver")
	limit := fs.Int("limit", queue.DefaultListLimit, "Maximum number of jobs")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	q, closeFn, err := openQueue(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeFn()

	jobs, err := q.List(ctx, queue.ListFilter{Receiver: *receiver, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list jobs: %v\n", err)
		return 1
	}

	if *jsonOut {
		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, toJobView(j, false))
		}
		data, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Println(tui.JobList(tui.NewDefaultTheme(), jobs))
	return 0
}

func runJobShow(args []string) int {
	fs := flag.NewFlagSet("job show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")

	// Allow the job id before or after flags.
	var jobID string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		jobID, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jobID == "" && fs.NArg() > 0 {
		jobID = fs.Arg(0)
	}
	if jobID == "" {
		fmt.Fprintln(os.Stderr, "Usage: hubgate job show <job_id> [--config PATH] [--json]")
		return 1
	}

	ctx := context.Background()
	q, closeFn, err := openQueue(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeFn()

	job, err := q.Get(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		fmt.Fprintf(os.Stderr, "Job not found: %s\n", jobID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load job: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(toJobView(job, true), "", "  ")
		fmt.Println(string(data))
		return 0
	}
	fmt.Println(tui.JobDetail(tui.NewDefaultTheme(), job))
	return 0
}

// --- sig ---

func runSigNoun(args []string) int {
	if len(args) < 1 {
		printSigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "sign":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate sig sign --secret-ref NAME [--config PATH] [--file PATH]")
			fmt.Println("Print the X-Hub-Signature value for a payload (stdin by default).")
			return 0
		}
		return runSigSign(actionArgs)
	case "verify":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: hubgate sig verify --secret-ref NAME --signature VALUE [--config PATH] [--file PATH]")
			fmt.Println("Check a signature header value against a payload (stdin by default).")
			return 0
		}
		return runSigVerify(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown sig action: %s\n", action)
		return 1
	}
}

func printSigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hubgate sig <action>")
	fmt.Fprintln(w, "Actions: sign, verify")
}

// payloadSource opens path, or spools stdin so it can be hashed like a
// request body.
func payloadSource(path string) (io.ReadSeeker, func(), error) {
	if path == "" || path == "-" {
		sb := signature.NewSpooledBody(os.Stdin, 0)
		return sb, func() { _ = sb.Close() }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func lookupSecret(configPath, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("--secret-ref is required")
	}
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	secret, ok := cfg.Secret(ref)
	if !ok || secret == "" {
		return nil, fmt.Errorf("secret %q is not configured", ref)
	}
	return []byte(secret), nil
}

func runSigSign(args []string) int {
	fs := flag.NewFlagSet("sig sign", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	secretRef := fs.String("secret-ref", "", "Name of the secret in the config")
	file := fs.String("file", "", "Payload file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	secret, err := lookupSecret(*configPath, *secretRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	body, closeFn, err := payloadSource(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open payload: %v\n", err)
		return 1
	}
	defer closeFn()

	digest, err := signature.Digester{}.Compute(context.Background(), secret, body, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign payload: %v\n", err)
		return 1
	}
	fmt.Println(signature.Header{Algorithm: signature.Algorithm, Digest: signature.EncodeHex(digest)}.String())
	return 0
}

func runSigVerify(args []string) int {
	fs := flag.NewFlagSet("sig verify", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	secretRef := fs.String("secret-ref", "", "Name of the secret in the config")
	value := fs.String("signature", "", "Signature header value, e.g. sha256=<hex>")
	file := fs.String("file", "", "Payload file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	hdr, err := signature.ParseHeader(*value, *value != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid signature: %v\n", err)
		return 1
	}
	expected, err := signature.DecodeHex(hdr.Digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid signature: %v\n", err)
		return 1
	}

	secret, err := lookupSecret(*configPath, *secretRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	body, closeFn, err := payloadSource(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open payload: %v\n", err)
		return 1
	}
	defer closeFn()

	actual, err := signature.Digester{}.Compute(context.Background(), secret, body, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash payload: %v\n", err)
		return 1
	}
	if !signature.Equal(expected, actual) {
		fmt.Println("signature mismatch")
		return 1
	}
	fmt.Println("signature valid")
	return 0
}
