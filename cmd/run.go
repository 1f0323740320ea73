package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/document"
	"github.com/sells-group/segment-cli/internal/model"
)

var (
	runCompany     string
	runIndustry    string
	runModel       string
	runDescription string
	runTarget      string
	runGeo         string
	runCompetitors []string
	runDocs        []string
	runOutput      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full segmentation research pipeline for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		p, _, err := newPipeline(cfg)
		if err != nil {
			return err
		}

		input := model.BusinessInput{
			CompanyName:       runCompany,
			Industry:          runIndustry,
			BusinessModel:     model.ParseBusinessModel(runModel),
			Description:       runDescription,
			TargetDescription: runTarget,
			Geography:         runGeo,
			KnownCompetitors:  runCompetitors,
		}

		var doc *model.DocumentContext
		if len(runDocs) > 0 {
			doc, err = document.Extract(runDocs)
			if err != nil {
				return eris.Wrap(err, "extract documents")
			}
			zap.L().Info("documents extracted",
				zap.Int("files", doc.FileCount),
				zap.Int("data_points", doc.DataPoints),
			)
		}

		result, err := p.Run(ctx, input, doc)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("research complete",
			zap.String("run_id", result.RunID),
			zap.Int("sources_retrieved", result.SourcesRetrieved),
			zap.Int("sources_used", result.SourcesUsed),
			zap.Bool("degraded", result.Degraded()),
			zap.Float64("cost_usd", result.TotalCostUSD),
		)

		out := os.Stdout
		if runOutput != "" {
			f, err := os.Create(runOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name")
	runCmd.Flags().StringVar(&runIndustry, "industry", "", "industry the business operates in (required)")
	runCmd.Flags().StringVar(&runModel, "model", "both", "business model: b2b, b2c, or both")
	runCmd.Flags().StringVar(&runDescription, "description", "", "short description of the business")
	runCmd.Flags().StringVar(&runTarget, "target", "", "description of the target customer")
	runCmd.Flags().StringVar(&runGeo, "geo", "", "primary geography")
	runCmd.Flags().StringSliceVar(&runCompetitors, "competitor", nil, "known competitor (repeatable)")
	runCmd.Flags().StringSliceVar(&runDocs, "doc", nil, "path to a supporting document: csv, xlsx, txt, or md (repeatable)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "write result JSON to file instead of stdout")
	_ = runCmd.MarkFlagRequired("industry")
	rootCmd.AddCommand(runCmd)
}
