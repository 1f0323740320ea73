package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/document"
	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/planner"
)

var (
	planCompany     string
	planIndustry    string
	planModel       string
	planTarget      string
	planGeo         string
	planCompetitors []string
	planDocs        []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate the query plan without retrieving or analyzing",
	Long:  "Builds the deduplicated, categorized search query set for the given business input and prints it as JSON. Runs fully offline; useful for inspecting what a run would search for.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("plan"); err != nil {
			return err
		}

		input := model.BusinessInput{
			CompanyName:       planCompany,
			Industry:          planIndustry,
			BusinessModel:     model.ParseBusinessModel(planModel),
			TargetDescription: planTarget,
			Geography:         planGeo,
			KnownCompetitors:  planCompetitors,
		}

		var doc *model.DocumentContext
		if len(planDocs) > 0 {
			var err error
			doc, err = document.Extract(planDocs)
			if err != nil {
				return eris.Wrap(err, "extract documents")
			}
		}

		plan := planner.New(cfg.Planner.MaxQueries).Plan(input, doc)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

func init() {
	planCmd.Flags().StringVar(&planCompany, "company", "", "company name")
	planCmd.Flags().StringVar(&planIndustry, "industry", "", "industry the business operates in")
	planCmd.Flags().StringVar(&planModel, "model", "both", "business model: b2b, b2c, or both")
	planCmd.Flags().StringVar(&planTarget, "target", "", "description of the target customer")
	planCmd.Flags().StringVar(&planGeo, "geo", "", "primary geography")
	planCmd.Flags().StringSliceVar(&planCompetitors, "competitor", nil, "known competitor (repeatable)")
	planCmd.Flags().StringSliceVar(&planDocs, "doc", nil, "path to a supporting document (repeatable)")
	rootCmd.AddCommand(planCmd)
}
