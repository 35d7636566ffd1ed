// Command ctgovwarm warms or inspects a ctgov-cache store from the
// command line: given a list of NCT ids, it ensures each is fetched
// and persisted, then reports what is now cached. Its flag-driven,
// single-pass shape follows the teacher's warren-migrate tool.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/ctgov"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/google/uuid"
)

var (
	dataDir   = flag.String("data-dir", "./ctgov-data", "directory for the filesystem-backed store")
	sqliteDSN = flag.String("sqlite", "", "use the SQLite backend at this path instead of the filesystem one")
	idsFile   = flag.String("ids-file", "", "file with one NCT id per line (in addition to any given as arguments)")
	batchSize = flag.Int("max-trials-per-request", 128, "max NCT ids per remote batch")
	timeout   = flag.Duration("timeout", 60*time.Second, "overall deadline for the warm run")
	demo      = flag.Bool("demo", false, "after warming, build a throwaway ResearchStudy per id and print its merged fields")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)
	log.Println("ctgov-cache warm tool")

	ids, err := collectIDs(flag.Args(), *idsFile)
	if err != nil {
		log.Fatalf("collecting ids: %v", err)
	}
	if len(ids) == 0 {
		log.Fatal("no NCT ids given; pass them as arguments or via -ids-file")
	}
	log.Printf("warming %d distinct NCT id(s)", len(ids))

	cfg := ctgov.Config{
		DataDir:             *dataDir,
		DSN:                 *sqliteDSN,
		MaxTrialsPerRequest: *batchSize,
	}
	if *sqliteDSN != "" {
		cfg.StoreKind = ctgov.StoreKindSQLite
	} else {
		cfg.StoreKind = ctgov.StoreKindFile
	}

	svc := ctgov.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := svc.Init(ctx); err != nil {
		log.Fatalf("init: %v", err)
	}
	defer func() {
		if err := svc.Destroy(); err != nil {
			log.Printf("destroy: %v", err)
		}
	}()

	if err := svc.EnsureTrialsAvailable(ctx, ids); err != nil {
		log.Printf("ensureTrialsAvailable returned an error: %v", err)
	}

	report(ctx, svc, ids)

	if *demo {
		demoMerge(ctx, svc, ids)
	}
}

// demoMerge builds a fresh, minimal ResearchStudy object per id — with
// a uuid-generated resource id, since this tool has no real FHIR
// source to pull one from — and runs it through the same merge path a
// host application would use, printing what came back.
func demoMerge(ctx context.Context, svc *ctgov.Service, ids []nct.ID) {
	objs := make([]*types.StudyObject, len(ids))
	for i, id := range ids {
		objs[i] = &types.StudyObject{
			ID: uuid.NewString(),
			Identifier: []types.Identifier{
				{System: "http://clinicaltrials.gov/", Value: id.String()},
			},
		}
	}

	merged, err := svc.UpdateResearchStudies(ctx, objs)
	if err != nil {
		log.Printf("demo merge failed: %v", err)
		return
	}
	for _, obj := range merged {
		log.Printf("demo %s: status=%q description=%q", obj.ID, obj.Status, obj.Description)
	}
}

func report(ctx context.Context, svc *ctgov.Service, ids []nct.ID) {
	found, missing := 0, 0
	for _, id := range ids {
		record, err := svc.GetCachedClinicalStudy(ctx, id.String())
		switch {
		case err != nil:
			log.Printf("%s: failed: %v", id, err)
			missing++
		case record == nil:
			log.Printf("%s: not available upstream", id)
			missing++
		default:
			found++
		}
	}
	log.Printf("done: %d cached, %d missing", found, missing)
}

func collectIDs(args []string, file string) ([]nct.ID, error) {
	raw := append([]string(nil), args...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	seen := make(map[nct.ID]bool, len(raw))
	var ids []nct.ID
	for _, s := range raw {
		id, ok := nct.Parse(s)
		if !ok {
			log.Printf("skipping invalid NCT id %q", s)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
