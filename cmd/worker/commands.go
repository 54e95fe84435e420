package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/db"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/pncp"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (w *worker) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.Migrate(cmd.Context(), w.conn); err != nil {
				return err
			}
			pterm.Success.Println("Schema is up to date")
			return nil
		},
	}
}

func (w *worker) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register the monitored municipalities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = w.cfg.Analysis.MunicipalitiesSeedFile
			}
			munis, err := config.LoadMunicipalities(file)
			if err != nil {
				return err
			}
			for i := range munis {
				if err := w.storage.Municipalities.UpsertMunicipality(cmd.Context(), &munis[i]); err != nil {
					return err
				}
			}
			pterm.Success.Printfln("%d municipalities registered from %s", len(munis), file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (default LAP_ANALYSIS_MUNICIPALITIES_FILE)")
	return cmd
}

func (w *worker) collectCmd() *cobra.Command {
	var start, end, trigger string
	var codes []string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect PNCP publications of the registered municipalities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := collectWindow(start, end, time.Now(), w.cfg.PNCP.LookbackDays)
			if err != nil {
				return err
			}
			selected, err := ibgeCodes(codes)
			if err != nil {
				return err
			}
			trig, err := triggerType(trigger)
			if err != nil {
				return err
			}

			spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Collecting %s to %s", from.Format(time.DateOnly), to.Format(time.DateOnly)))
			summary, err := w.collector().Run(cmd.Context(), pncp.RunOptions{
				Start:     from,
				End:       to,
				IBGECodes: selected,
				Trigger:   trig,
			})
			if err != nil {
				spinner.Fail(err.Error())
				return err
			}
			w.cache.ClearPattern(cmd.Context(), cache.PatternPriceStatistics)
			spinner.Success(fmt.Sprintf("Run %s finished with status %s", summary.RunID, summary.Status))
			return render(summaryTable(summary))
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First publication day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last publication day, YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&codes, "codes", nil, "IBGE codes to collect (comma separated, default all)")
	cmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger source: manual, scheduled")
	return cmd
}

func (w *worker) collectBiddingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect-bidding <licitacao-id>",
		Short: "Refresh the items and results of one stored bidding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			stats, err := w.collector().CollectBidding(cmd.Context(), id)
			if err != nil {
				return err
			}
			w.cache.ClearPattern(cmd.Context(), cache.PatternPriceStatistics)
			pterm.Success.Printfln("Bidding %d: items=%d results=%d skipped=%d", id, stats.Items, stats.Results, stats.Skipped)
			return nil
		},
	}
}

func (w *worker) analyzeCmd() *cobra.Command {
	var biddingID int64
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the anomaly rules over recent biddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var scope anomaly.Scope
			if biddingID > 0 {
				scope.BiddingID = &biddingID
			}
			run, err := w.detector().RunFullAnalysis(cmd.Context(), scope)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Run %s: %d biddings analysed, %d new anomalies", run.ID, run.Biddings, len(run.Anomalies))
			if len(run.Anomalies) == 0 {
				return nil
			}
			return render(anomaliesTable(run.Anomalies))
		},
	}
	cmd.Flags().Int64Var(&biddingID, "bidding", 0, "Analyse a single bidding id")
	return cmd
}

func (w *worker) recurringCmd() *cobra.Command {
	var orgID int64
	var days int
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Flag suppliers concentrating the wins of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if orgID <= 0 {
				return fmt.Errorf("--org is required")
			}
			if days <= 0 {
				days = w.cfg.Analysis.RecurringSupplierDays
			}
			found, err := w.detector().DetectRecurringSupplier(cmd.Context(), orgID, days)
			if err != nil {
				return err
			}
			pterm.Info.Printfln("Organization %d: %d new recurring supplier anomalies over %d days", orgID, len(found), days)
			if len(found) == 0 {
				return nil
			}
			return render(anomaliesTable(found))
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "Organization id")
	cmd.Flags().IntVar(&days, "days", 0, "Trailing window in days (default LAP_ANALYSIS_RECURRING_SUPPLIER_DAYS)")
	return cmd
}

func (w *worker) governanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "governance",
		Short: "Governance indicators of the municipalities",
	}

	var municipalityID int64
	var period string
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Recompute and store the monthly governance records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optionalPeriod(period)
			if err != nil {
				return err
			}
			scorer := w.scorer()

			var records []domain.GovernanceRecord
			if municipalityID > 0 {
				rec, err := scorer.UpsertGovernancePeriod(cmd.Context(), municipalityID, p)
				if err != nil {
					return err
				}
				records = append(records, rec)
			} else if records, err = scorer.UpsertAllPeriods(cmd.Context(), p); err != nil {
				return err
			}
			w.cache.Delete(cmd.Context(), cache.KeyGovernanceRanking)
			pterm.Success.Printfln("%d governance records stored", len(records))
			return render(recordsTable(records))
		},
	}
	upsert.Flags().Int64Var(&municipalityID, "municipio", 0, "Single municipality id (default all)")
	upsert.Flags().StringVar(&period, "periodo", "", "Period as YYYY-MM (default current month)")

	rank := &cobra.Command{
		Use:   "rank",
		Short: "Print the governance ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranking, err := w.scorer().RankMunicipalities(cmd.Context())
			if err != nil {
				return err
			}
			pterm.DefaultSection.Println("Governance ranking")
			return render(rankingTable(ranking))
		},
	}

	cmd.AddCommand(upsert, rank)
	return cmd
}

func (w *worker) sanctionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanctions",
		Short: "CEIS and CNEP registries",
	}

	var registries []string
	var date, trigger string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load the full CEIS/CNEP datasets into the local table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now().AddDate(0, 0, -1)
			if date != "" {
				d, err := parseDay(date)
				if err != nil {
					return err
				}
				day = d
			}
			trig, err := triggerType(trigger)
			if err != nil {
				return err
			}

			importer := w.importer()
			var summaries []sanctions.ImportSummary
			for _, reg := range registries {
				spinner, _ := pterm.DefaultSpinner.Start("Importing " + reg)
				s, err := importer.Import(cmd.Context(), reg, day, trig)
				if err != nil {
					spinner.Fail(err.Error())
					return err
				}
				spinner.Success(fmt.Sprintf("%s: %d imported, %d skipped", s.Registry, s.Imported, s.Skipped))
				summaries = append(summaries, s)
			}
			return render(importTable(summaries))
		},
	}
	importCmd.Flags().StringSliceVar(&registries, "registry", []string{domain.SourceCEIS, domain.SourceCNEP}, "Registries to import")
	importCmd.Flags().StringVar(&date, "date", "", "Dataset date, YYYY-MM-DD (default yesterday)")
	importCmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger source: manual, scheduled")

	check := &cobra.Command{
		Use:   "check <cnpj-or-cpf>",
		Short: "Query both registries for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := w.sanctionsService().Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Restricted {
				pterm.Success.Printfln("%s has no sanctions on record", res.Document)
				return nil
			}
			pterm.Warning.Printfln("%s is listed in %d registries", res.Document, len(res.Details))
			return render(checkTable(res))
		},
	}

	screen := &cobra.Command{
		Use:   "screen <licitacao-id>",
		Short: "Check the winning suppliers of a bidding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			alerts, err := w.sanctionsService().ScreenBidding(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				pterm.Success.Printfln("Bidding %d: no sanctioned suppliers", id)
				return nil
			}
			pterm.Warning.Printfln("Bidding %d: %d sanctioned suppliers", id, len(alerts))
			return render(alertsTable(alerts))
		},
	}

	cmd.AddCommand(importCmd, check, screen)
	return cmd
}

func summaryTable(s pncp.Summary) pterm.TableData {
	failed := "-"
	if len(s.Failed) > 0 {
		failed = fmt.Sprint(s.Failed)
	}
	return pterm.TableData{
		{"Status", "Municipalities", "Biddings", "Items", "Results", "Skipped", "Failed"},
		{s.Status, strconv.Itoa(s.Municipalities), strconv.Itoa(s.Biddings), strconv.Itoa(s.Items), strconv.Itoa(s.Results), strconv.Itoa(s.Skipped), failed},
	}
}

func anomaliesTable(list []domain.Anomaly) pterm.TableData {
	data := pterm.TableData{{"Type", "Bidding", "Description", "Score"}}
	for _, a := range list {
		bidding := "-"
		if a.BiddingID != nil {
			bidding = strconv.FormatInt(*a.BiddingID, 10)
		}
		score := "-"
		if a.RiskScore != nil {
			score = strconv.FormatFloat(*a.RiskScore, 'f', 0, 64)
		}
		data = append(data, []string{a.Type.Label(), bidding, a.Description, score})
	}
	return data
}

func recordsTable(records []domain.GovernanceRecord) pterm.TableData {
	data := pterm.TableData{{"Municipality", "Period", "Transparency", "Success", "HHI", "ME/EPP", "Biddings"}}
	for _, r := range records {
		data = append(data, []string{
			strconv.FormatInt(r.MunicipalityID, 10),
			r.Period,
			formatFloat(r.TransparencyIndex),
			formatFloat(r.SuccessRate),
			formatFloat(r.HHI),
			formatFloat(r.MEEPPShare),
			strconv.Itoa(r.TotalBiddings),
		})
	}
	return data
}

func rankingTable(ranking []governance.RankingEntry) pterm.TableData {
	data := pterm.TableData{{"#", "Municipality", "UF", "Score", "Transparency", "Success", "Savings"}}
	for i, e := range ranking {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			e.Name,
			e.UF,
			formatFloat(e.Score),
			formatFloat(e.TransparencyIndex),
			formatFloat(e.SuccessRate),
			formatFloat(e.AverageSavings),
		})
	}
	return data
}

func importTable(summaries []sanctions.ImportSummary) pterm.TableData {
	data := pterm.TableData{{"Registry", "Status", "Files", "Imported", "Skipped"}}
	for _, s := range summaries {
		data = append(data, []string{s.Registry, s.Status, strconv.Itoa(s.Files), strconv.Itoa(s.Imported), strconv.Itoa(s.Skipped)})
	}
	return data
}

func checkTable(c sanctions.Check) pterm.TableData {
	data := pterm.TableData{{"Registry", "Sanction", "Start", "End", "Sanctioning body"}}
	for _, d := range c.Details {
		for _, r := range d.Records {
			data = append(data, []string{d.Source, r.SanctionType.Description, r.StartDate, r.EndDate, r.SanctioningOrg.Name})
		}
	}
	return data
}

func alertsTable(alerts []sanctions.Alert) pterm.TableData {
	data := pterm.TableData{{"Supplier", "Document", "Registries"}}
	for _, a := range alerts {
		sources := make([]string, 0, len(a.Sanctions))
		for _, s := range a.Sanctions {
			sources = append(sources, s.Source)
		}
		data = append(data, []string{a.Name, a.Document, fmt.Sprint(sources)})
	}
	return data
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
