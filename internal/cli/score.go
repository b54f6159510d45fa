package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

// entryDoc is the on-disk shape of a metric entry. Dates stay strings so both
// "2025-01-05" and RFC 3339 timestamps are accepted.
type entryDoc struct {
	Name               string   `yaml:"name"`
	Metric             string   `yaml:"metric"`
	Company            string   `yaml:"company"`
	MeasuredValue      *float64 `yaml:"measured_value"`
	TargetValue        *float64 `yaml:"target_value"`
	Performance        string   `yaml:"performance"`
	SourceDoctype      string   `yaml:"source_doctype"`
	VerificationStatus string   `yaml:"verification_status"`
	EntryDate          string   `yaml:"entry_date"`
}

// entryFile is either a bare list of entries or a mapping with an entries key.
type entryFile struct {
	Entries []entryDoc `yaml:"entries"`
}

func newScoreCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score metric entries read from YAML or JSON files",
		Long: `Reads metric entries from every file matching --file (doublestar globs such as
data/**/*.yaml are supported) and prints the resulting score snapshot.`,
		Example: "  esgctl score --file 'entries/**/*.yaml' --as-of 2025-06-30 -o table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, v)
		},
	}

	cmd.Flags().StringSlice("file", nil, "Entry file or glob (repeatable)")
	cmd.Flags().String("as-of", "", "Reference date for trends (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("ignore-empty", false, "Leave categories without entries out of the overall score")
	_ = cmd.MarkFlagRequired("file")
	_ = v.BindPFlag("ignore-empty", cmd.Flags().Lookup("ignore-empty"))

	return cmd
}

func runScore(cmd *cobra.Command, v *viper.Viper) error {
	patterns, _ := cmd.Flags().GetStringSlice("file")
	asOf, _ := cmd.Flags().GetString("as-of")

	files, err := expandPatterns(patterns)
	if err != nil {
		return err
	}

	var entries []scoring.MetricEntry
	for _, f := range files {
		got, err := loadEntries(f)
		if err != nil {
			return err
		}
		entries = append(entries, got...)
	}

	engine := scoring.NewEngine(time.Now, scoring.Options{IgnoreEmptyCategories: v.GetBool("ignore-empty")})

	var snap scoring.ScoreSnapshot
	if asOf != "" {
		ref, err := time.Parse(models.DateLayout, asOf)
		if err != nil {
			return fmt.Errorf("--as-of must be a YYYY-MM-DD date: %w", err)
		}
		snap = engine.SnapshotAt(entries, ref)
	} else {
		snap = engine.Snapshot(entries)
	}

	return render(cmd.OutOrStdout(), v.GetString("output"), snap, func() string {
		return renderSnapshotTable(snap)
	})
}

// expandPatterns resolves every pattern to a sorted, de-duplicated file list. A pattern
// matching nothing is an error so typos do not silently score zero entries.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func loadEntries(path string) ([]scoring.MetricEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var docs []entryDoc
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	switch {
	case len(node.Content) == 0:
	case node.Content[0].Kind == yaml.SequenceNode:
		err = node.Content[0].Decode(&docs)
	default:
		var f entryFile
		err = node.Decode(&f)
		docs = f.Entries
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	entries := make([]scoring.MetricEntry, len(docs))
	for i, d := range docs {
		e, err := d.toEntry()
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		entries[i] = e
	}
	return entries, nil
}

func (d entryDoc) toEntry() (scoring.MetricEntry, error) {
	e := scoring.MetricEntry{
		Name:               d.Name,
		Metric:             d.Metric,
		Company:            d.Company,
		MeasuredValue:      d.MeasuredValue,
		TargetValue:        d.TargetValue,
		Performance:        scoring.Performance(d.Performance),
		SourceDoctype:      d.SourceDoctype,
		VerificationStatus: scoring.VerificationStatus(d.VerificationStatus),
	}
	if s := strings.TrimSpace(d.EntryDate); s != "" {
		t, err := parseEntryDate(s)
		if err != nil {
			return scoring.MetricEntry{}, err
		}
		e.EntryDate = t
	}
	return e, nil
}

func parseEntryDate(s string) (time.Time, error) {
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("entry_date %q is not YYYY-MM-DD or RFC 3339", s)
}
