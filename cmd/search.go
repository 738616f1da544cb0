package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

var (
	searchQuery   stortrack.AddressQuery
	searchRadius  float64
	searchStoreID int
	searchWrite   string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find a subject store and its competitors",
	Long:  "Looks up stores by address or name, picks the subject (the first match, or --store-id) and lists competitors within --radius miles. With --write the result is saved as a run file for gaps and analyze.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("search"); err != nil {
			return err
		}
		if searchQuery.State == "" && searchQuery.City == "" && searchQuery.Zip == "" &&
			searchQuery.StoreName == "" && searchQuery.CompanyName == "" {
			return eris.New("search: at least one of --state, --city, --zip, --store-name, --company-name is required")
		}
		radius := searchRadius
		if radius <= 0 {
			radius = cfg.Analysis.Radius
		}

		client := initStorTrack()
		matches, err := client.FindStoresByAddress(ctx, searchQuery)
		if err != nil {
			return eris.Wrap(err, "search stores")
		}
		subject, ok := pickSubject(matches, searchStoreID)
		if !ok {
			return eris.New("search: no matching store found")
		}
		zap.L().Info("subject selected",
			zap.Int("store_id", subject.StoreID),
			zap.String("name", subject.StoreName),
			zap.Int("matches", len(matches)),
		)

		comps, err := client.FindCompetitors(ctx, subject.StoreID, subject.MasterID, radius)
		if err != nil {
			return eris.Wrap(err, "find competitors")
		}

		rf := &runFile{
			Subject:     toEntity(subject),
			Comparators: toEntities(comps, subject.StoreID),
			Window:      windowConfig{Months: DefaultWindowMonths},
		}

		if searchWrite != "" {
			f, err := os.Create(searchWrite)
			if err != nil {
				return eris.Wrap(err, "create run file")
			}
			defer f.Close() //nolint:errcheck
			if err := writeRunFile(f, rf); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %s: subject %d with %d competitors.\n", searchWrite, rf.Subject.ID, len(rf.Comparators))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"matches":     matches,
			"subject":     rf.Subject,
			"competitors": rf.Comparators,
		})
	},
}

// pickSubject returns the store with id, or the first match when id is 0.
func pickSubject(matches []stortrack.StoreSummary, id int) (stortrack.StoreSummary, bool) {
	for _, m := range matches {
		if id == 0 || m.StoreID == id {
			return m, true
		}
	}
	return stortrack.StoreSummary{}, false
}

func toEntity(s stortrack.StoreSummary) model.EntityInfo {
	return model.EntityInfo{
		ID:        s.StoreID,
		MasterID:  s.MasterID,
		Name:      s.StoreName,
		Address:   s.Address,
		City:      s.City,
		State:     s.State,
		Zip:       s.Zip,
		Phone:     s.Phone,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Distance:  s.Distance.Float(),
		Status:    s.StoreStatus,
	}
}

// toEntities converts competitors, dropping the subject and repeats.
func toEntities(stores []stortrack.StoreSummary, subjectID int) []model.EntityInfo {
	seen := map[int]bool{subjectID: true}
	var out []model.EntityInfo
	for _, s := range stores {
		if seen[s.StoreID] {
			continue
		}
		seen[s.StoreID] = true
		out = append(out, toEntity(s))
	}
	return out
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchQuery.State, "state", "", "state abbreviation")
	f.StringVar(&searchQuery.City, "city", "", "city")
	f.StringVar(&searchQuery.Zip, "zip", "", "zip code")
	f.StringVar(&searchQuery.StoreName, "store-name", "", "store name")
	f.StringVar(&searchQuery.CompanyName, "company-name", "", "operator name")
	f.StringVar(&searchQuery.Country, "country", stortrack.DefaultCountry, "country")
	f.Float64Var(&searchRadius, "radius", 0, "competitor radius in miles (default analysis.radius)")
	f.IntVar(&searchStoreID, "store-id", 0, "pick this store as subject instead of the first match")
	f.StringVarP(&searchWrite, "write", "w", "", "write a run file to this path")
	rootCmd.AddCommand(searchCmd)
}
