package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/config"
	"github.com/fastygo/dailyquest/repository"
	catalogUC "github.com/fastygo/dailyquest/usecase/catalog"
)

// SeedFile is the YAML layout accepted by questctl seed.
type SeedFile struct {
	Quests []SeedQuest `yaml:"quests"`
}

type SeedQuest struct {
	ID          string `yaml:"id,omitempty"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Points      int    `yaml:"points"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active,omitempty"`
}

// LoadSeedFile parses a quest catalog. Unknown fields are rejected.
func LoadSeedFile(path string) ([]domain.Quest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]domain.Quest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file SeedFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(file.Quests) == 0 {
		return nil, fmt.Errorf("parse seed: no quests defined")
	}

	quests := make([]domain.Quest, 0, len(file.Quests))
	for _, q := range file.Quests {
		active := true
		if q.Active != nil {
			active = *q.Active
		}
		quests = append(quests, domain.Quest{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Points:      q.Points,
			IsActive:    active,
		})
	}
	return quests, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Import quest templates from a YAML catalog",
		Long: `Import quest templates from a YAML file of the form:

  quests:
    - id: walk-5k
      title: Walk 5 km
      points: 3

Templates are upserted by id; entries without an id get a generated one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quests, err := LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			for i := range quests {
				if err := quests[i].Validate(); err != nil {
					return fmt.Errorf("quest #%d: %w", i+1, err)
				}
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d quests valid\n", len(quests))
				return nil
			}

			return rootOpts.withStore(cmd.Context(), func(_ *config.Config, store repository.Store, log *zap.Logger) error {
				imported, err := catalogUC.New(store.Quests(), log).Import(cmd.Context(), quests)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d quests imported\n", imported)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}
