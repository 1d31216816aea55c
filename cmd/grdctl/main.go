package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/grd/grdctl/internal/config"
	"github.com/grd/grdctl/internal/domain/ajustes"
	"github.com/grd/grdctl/internal/domain/audit"
	"github.com/grd/grdctl/internal/domain/codification"
	"github.com/grd/grdctl/internal/domain/norms"
	"github.com/grd/grdctl/internal/domain/pricing"
	"github.com/grd/grdctl/internal/domain/reports"
	"github.com/grd/grdctl/internal/domain/users"
	authpkg "github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/pkg/pagination"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grdctl",
		Short: "Operator CLI for the GRD-FONASA coding backend",
	}

	rootCmd.AddCommand(batchesCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(normsCmd())
	rootCmd.AddCommand(pricingCmd())
	rootCmd.AddCommand(ajustesCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(whoamiCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the pieces every command needs: validated config, a logger,
// and the authenticated backend client.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	api    *rest.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	var tokens rest.TokenSource
	switch {
	case cfg.AuthToken != "":
		tokens = authpkg.NewStaticTokenSource(cfg.AuthToken)
	case cfg.AuthIssuer != "":
		tokens, err = authpkg.NewClientCredentialsSource(cfg.AuthIssuer, cfg.AuthClientID, cfg.AuthClientSecret, cfg.AuthAudience)
		if err != nil {
			return nil, fmt.Errorf("configuring OIDC client: %w", err)
		}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		api:    rest.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout(), tokens, logger),
	}, nil
}

// role resolves the caller's role from the user directory. Field-level edit
// permissions and upload gates all key off it.
func (a *app) role(ctx context.Context) (string, error) {
	me, err := users.NewGateway(a.api).Me(ctx)
	if err != nil {
		if rest.IsAuth(err) {
			return "", fmt.Errorf("%w\nre-authenticate: refresh AUTH_TOKEN or check the OIDC client settings", err)
		}
		return "", fmt.Errorf("resolving current user: %w", err)
	}
	return me.Role, nil
}

func batchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List, export, and import codification batches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List import batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			g := codification.NewGateway(a.api, codification.NewStore(a.logger), a.cfg.MaxUploadMB, a.logger)
			batches, err := g.ListBatches(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tARCHIVO\tESTADO\tFILAS\tPROCESADAS\tERRORES\tCREADO")
			for _, b := range batches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					b.ID, b.Filename, b.Status, b.TotalRows, b.ProcessedRows, b.ErrorRows, b.CreatedAt)
			}
			return tw.Flush()
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Export a batch's normalized records as semicolon CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")

			store := codification.NewStore(a.logger)
			g := codification.NewGateway(a.api, store, a.cfg.MaxUploadMB, a.logger)
			if err := g.LoadBatch(cmd.Context(), args[0]); err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := codification.ExportCSV(w, store.Records()); err != nil {
				return err
			}
			if out != "" {
				fmt.Printf("%d registros exportados a %s\n", store.Len(), out)
			}
			return nil
		},
	}
	exportCmd.Flags().String("out", "", "write CSV to this file instead of stdout")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Import a codification CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			role, err := a.role(cmd.Context())
			if err != nil {
				return err
			}
			g := codification.NewGateway(a.api, codification.NewStore(a.logger), a.cfg.MaxUploadMB, a.logger)
			result, err := g.Upload(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Printf("lote %s: %d filas procesadas, %d con error\n", result.BatchID, result.ProcessedRows, result.ErrorRows)
			return nil
		},
	})

	return cmd
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <batch-id> <record-id.field=value>...",
		Short: "Edit normalized records and save the changes",
		Long: `Loads a batch, applies the given field assignments, and submits only
the values that differ from the server baseline, filtered to the fields the
current role may edit. Numeric fields accept comma or dot decimals.

Example:
  grdctl edit b81f2 r1.validacion=REVISAR r2.pesoGrdMedio=1,85`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			yes, _ := cmd.Flags().GetBool("yes")

			assignments, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			role, err := a.role(cmd.Context())
			if err != nil {
				return err
			}

			store := codification.NewStore(a.logger)
			g := codification.NewGateway(a.api, store, a.cfg.MaxUploadMB, a.logger)
			if err := g.LoadBatch(cmd.Context(), args[0]); err != nil {
				return err
			}

			for recordID, values := range assignments {
				if _, ok := store.Get(recordID); !ok {
					return fmt.Errorf("record %s not found in batch %s", recordID, args[0])
				}
				store.CommitRowEdit(recordID, values)
			}

			changes := store.BuildChangeset(role)
			if len(changes) == 0 {
				fmt.Println("nada que guardar: los valores coinciden con el servidor o el rol no permite editar esos campos")
				return nil
			}

			fmt.Printf("cambios a enviar (rol %s):\n", role)
			for _, ch := range changes {
				for field, value := range ch.Updates {
					fmt.Printf("  %s.%s = %v\n", ch.ID, field, value)
				}
			}
			if dryRun {
				return nil
			}
			if !yes && !confirm(fmt.Sprintf("¿Guardar %d registro(s) en el lote %s?", len(changes), args[0])) {
				fmt.Println("cancelado; no se envió nada")
				return nil
			}

			if err := g.Save(cmd.Context(), args[0], role); err != nil {
				if rest.IsAuth(err) {
					return fmt.Errorf("%w\nlos cambios locales se conservaron; re-authenticate and retry", err)
				}
				return err
			}
			fmt.Println("cambios guardados y registros sincronizados con el servidor")
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "show the changeset without saving")
	cmd.Flags().Bool("yes", false, "save without asking for confirmation")
	return cmd
}

func normsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "norms",
		Short: "Manage GRD/FONASA norm tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List norm files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			files, err := norms.NewGateway(a.api, a.cfg.MaxUploadMB).Files(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tARCHIVO\tTIPO\tVERSION\tESTADO\tFILAS\tACTIVA")
			for _, f := range files {
				active := ""
				if f.IsActive {
					active = "sí"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					f.ID, f.Filename, f.NormType, f.Version, f.Status, f.Count.NormRows, active)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rows <file-id>",
		Short: "Show the rows of a norm file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rows, err := norms.NewGateway(a.api, a.cfg.MaxUploadMB).Rows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODIGO\tDESCRIPCION\tVALOR\tACTIVO")
			for _, r := range rows {
				valor := ""
				if r.Valor != nil {
					valor = strconv.FormatFloat(*r.Valor, 'f', -1, 64)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", r.Codigo, r.Descripcion, valor, r.Activo)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <file-id>",
		Short: "Make a norm file the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := norms.NewGateway(a.api, a.cfg.MaxUploadMB).SetActive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("norma %s activada\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Import a norm CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			role, err := a.role(cmd.Context())
			if err != nil {
				return err
			}
			result, err := norms.NewGateway(a.api, a.cfg.MaxUploadMB).Upload(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Printf("norma %s: %d filas procesadas, %d con error\n", result.NormFileID, result.ProcessedRows, result.ErrorRows)
			return nil
		},
	})

	return cmd
}

func pricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Manage convenio tariffs and calculate precios base",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "files",
		Short: "List tariff files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			files, err := pricing.NewGateway(a.api, a.cfg.MaxUploadMB).Files(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tARCHIVO\tESTADO\tTARIFAS\tACTIVO")
			for _, f := range files {
				active := ""
				if f.IsActive {
					active = "sí"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Filename, f.Status, f.Count.Tarifas, active)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tarifas <file-id>",
		Short: "Show the tariffs of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			tarifas, err := pricing.NewGateway(a.api, a.cfg.MaxUploadMB).Tarifas(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONVENIO\tTRAMO\tPRECIO\tVIGENCIA")
			for _, t := range tarifas {
				tramo := "-"
				if t.Tramo != nil {
					tramo = *t.Tramo
				}
				vigencia := t.FechaAdmision
				if t.FechaFin != "" {
					vigencia += " → " + t.FechaFin
				}
				fmt.Fprintf(tw, "%s\t%s\t%.0f\t%s\n", t.ConvenioID, tramo, t.Precio, vigencia)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <file-id>",
		Short: "Make a tariff file the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := pricing.NewGateway(a.api, a.cfg.MaxUploadMB).Activate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("archivo de tarifas %s activado\n", args[0])
			return nil
		},
	})

	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Import a tariff file (CSV or Excel)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			role, err := a.role(cmd.Context())
			if err != nil {
				return err
			}
			result, err := pricing.NewGateway(a.api, a.cfg.MaxUploadMB).Upload(cmd.Context(), args[0], description, role)
			if err != nil {
				return err
			}
			fmt.Printf("tarifas %s: %d filas procesadas, %d con error\n", result.FileID, result.ProcessedRows, result.ErrorRows)
			return nil
		},
	}
	uploadCmd.Flags().String("description", "", "description stored with the file")
	cmd.AddCommand(uploadCmd)

	calcCmd := &cobra.Command{
		Use:   "calculate <convenio-id> <peso-relativo>",
		Short: "Calculate the precio base for a convenio and relative weight",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			peso, err := strconv.ParseFloat(strings.Replace(args[1], ",", ".", 1), 64)
			if err != nil {
				return fmt.Errorf("invalid peso relativo %q", args[1])
			}
			var fecha time.Time
			if raw, _ := cmd.Flags().GetString("fecha"); raw != "" {
				fecha, err = time.Parse("2006-01-02", raw)
				if err != nil {
					return fmt.Errorf("invalid --fecha %q, expected YYYY-MM-DD", raw)
				}
			}

			precio, err := pricing.NewGateway(a.api, a.cfg.MaxUploadMB).Calculate(cmd.Context(), args[0], peso, fecha)
			if err != nil {
				return err
			}
			fmt.Printf("convenio %s (%s, fuente %s): $%.0f\n", precio.ConvenioID, precio.Tipo, precio.Fuente, precio.Valor)
			if precio.Tramo != nil {
				max := "∞"
				if precio.Tramo.Max != nil {
					max = strconv.FormatFloat(*precio.Tramo.Max, 'f', -1, 64)
				}
				fmt.Printf("tramo %s (%s): %s - %s\n", precio.Tramo.ID, precio.Tramo.Etiqueta, strconv.FormatFloat(precio.Tramo.Min, 'f', -1, 64), max)
			}
			return nil
		},
	}
	calcCmd.Flags().String("fecha", "", "reference date (YYYY-MM-DD)")
	cmd.AddCommand(calcCmd)

	return cmd
}

func ajustesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ajustes",
		Short: "Manage ajustes por tecnología files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "files",
		Short: "List adjustment files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			files, err := ajustes.NewGateway(a.api, a.cfg.MaxUploadMB).Files(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tARCHIVO\tESTADO\tFILAS\tACTIVO")
			for _, f := range files {
				active := ""
				if f.IsActive {
					active = "sí"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Filename, f.Status, f.Count.Data, active)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rows <file-id>",
		Short: "Show the rows of an adjustment file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rows, err := ajustes.NewGateway(a.api, a.cfg.MaxUploadMB).Rows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODIGO\tDESCRIPCION\tMONTO")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%.0f\n", r.Codigo, r.Descripcion, r.Monto)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <file-id>",
		Short: "Make an adjustment file the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := ajustes.NewGateway(a.api, a.cfg.MaxUploadMB).Activate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("archivo de ajustes %s activado\n", args[0])
			return nil
		},
	})

	uploadCmd := &cobra.Command{
		Use:   "upload <file.xlsx>",
		Short: "Import an adjustments Excel file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			role, err := a.role(cmd.Context())
			if err != nil {
				return err
			}
			result, err := ajustes.NewGateway(a.api, a.cfg.MaxUploadMB).Upload(cmd.Context(), args[0], description, role)
			if err != nil {
				return err
			}
			fmt.Printf("ajustes %s: %d filas procesadas, %d con error\n", result.FileID, result.ProcessedRows, result.ErrorRows)
			return nil
		},
	}
	uploadCmd.Flags().String("description", "", "description stored with the file")
	cmd.AddCommand(uploadCmd)

	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
	}

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List audit log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			filter := audit.Filter{}
			filter.UserEmail, _ = cmd.Flags().GetString("user")
			filter.Action, _ = cmd.Flags().GetString("action")
			filter.EntityType, _ = cmd.Flags().GetString("entity-type")
			filter.EntityID, _ = cmd.Flags().GetString("entity-id")
			if raw, _ := cmd.Flags().GetString("from"); raw != "" {
				filter.From, err = time.Parse("2006-01-02", raw)
				if err != nil {
					return fmt.Errorf("invalid --from %q, expected YYYY-MM-DD", raw)
				}
			}
			if raw, _ := cmd.Flags().GetString("to"); raw != "" {
				filter.To, err = time.Parse("2006-01-02", raw)
				if err != nil {
					return fmt.Errorf("invalid --to %q, expected YYYY-MM-DD", raw)
				}
			}
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			result, err := audit.NewGateway(a.api).Logs(cmd.Context(), filter, pagination.Params{Page: page, Limit: limit})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FECHA\tACCION\tENTIDAD\tUSUARIO\tDESCRIPCION")
			for _, l := range result.Logs {
				entity := l.EntityType
				if l.EntityID != "" {
					entity += "/" + l.EntityID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					l.CreatedAt.Format("2006-01-02 15:04"), l.Action, entity, l.UserEmail, l.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("página %d de %d (%d entradas)\n",
				result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total)
			return nil
		},
	}
	logsCmd.Flags().String("user", "", "filter by user email")
	logsCmd.Flags().String("action", "", "filter by action, e.g. CODIFICATION_ROW_UPDATED")
	logsCmd.Flags().String("entity-type", "", "filter by entity type")
	logsCmd.Flags().String("entity-id", "", "filter by entity id")
	logsCmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	logsCmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	logsCmd.Flags().Int("page", 1, "page number")
	logsCmd.Flags().Int("limit", 20, "entries per page")
	cmd.AddCommand(logsCmd)

	return cmd
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show backend statistics and distributions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "overview",
		Short: "Show backend-wide entity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			o, err := reports.NewGateway(a.api).Overview(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "episodios\t%d\n", o.TotalEpisodios)
			fmt.Fprintf(tw, "lotes de importación\t%d\n", o.TotalImportBatches)
			fmt.Fprintf(tw, "archivos de normas\t%d\n", o.TotalNormaFiles)
			fmt.Fprintf(tw, "archivos de tarifas\t%d\n", o.TotalPricingFiles)
			fmt.Fprintf(tw, "archivos de ajustes\t%d\n", o.TotalAjustesFiles)
			fmt.Fprintf(tw, "cálculos\t%d\n", o.TotalCalculos)
			fmt.Fprintf(tw, "auditorías\t%d\n", o.TotalAuditorias)
			return tw.Flush()
		},
	})

	grdCmd := &cobra.Command{
		Use:   "grd",
		Short: "Show the episode distribution per GRD code",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			items, err := reports.NewGateway(a.api).GRDDistribution(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GRD\tEPISODIOS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%d\n", it.GRD, it.Cantidad)
			}
			return tw.Flush()
		},
	}
	grdCmd.Flags().Int("limit", 10, "number of GRD codes to show")
	cmd.AddCommand(grdCmd)

	convenioCmd := &cobra.Command{
		Use:   "convenios",
		Short: "Show the episode distribution per convenio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			items, err := reports.NewGateway(a.api).ConvenioDistribution(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONVENIO\tEPISODIOS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%d\n", it.Convenio, it.Cantidad)
			}
			return tw.Flush()
		},
	}
	convenioCmd.Flags().Int("limit", 10, "number of convenios to show")
	cmd.AddCommand(convenioCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "demografia",
		Short: "Show the age and sex distributions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			g := reports.NewGateway(a.api)
			ages, err := g.AgeDistribution(cmd.Context())
			if err != nil {
				return err
			}
			sexes, err := g.SexDistribution(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANGO ETARIO\tEPISODIOS")
			for _, it := range ages {
				fmt.Fprintf(tw, "%s\t%d\n", it.Rango, it.Cantidad)
			}
			fmt.Fprintln(tw, "\nSEXO\tEPISODIOS")
			for _, it := range sexes {
				fmt.Fprintf(tw, "%s\t%d\n", it.Sexo, it.Cantidad)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "calculos",
		Short: "Show the precio base calculation summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			stats, err := reports.NewGateway(a.api).CalcStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("cálculos totales: %d\npromedio total final: $%.0f\n", stats.TotalCalculos, stats.PromedioTotalFinal)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONVENIO\tCALCULOS")
			for _, it := range stats.CalculosPorConvenio {
				fmt.Fprintf(tw, "%s\t%d\n", it.Convenio, it.Cantidad)
			}
			return tw.Flush()
		},
	})

	activityCmd := &cobra.Command{
		Use:   "actividad",
		Short: "Show recent backend activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			items, err := reports.NewGateway(a.api).RecentActivity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FECHA\tACCION\tUSUARIO\tDESCRIPCION")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					it.CreatedAt.Format("2006-01-02 15:04"), it.Action, it.UserEmail, it.Description)
			}
			return tw.Flush()
		},
	}
	activityCmd.Flags().Int("limit", 10, "number of entries to show")
	cmd.AddCommand(activityCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "tendencia",
		Short: "Show the monthly import trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			points, err := reports.NewGateway(a.api).ImportTrend(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MES\tLOTES\tFILAS")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Mes, p.Cantidad, p.TotalRows)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List directory users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			list, err := users.NewGateway(a.api).List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNOMBRE\tEMAIL\tROL")
			for _, u := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
			}
			return tw.Flush()
		},
	})

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a directory user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p := users.Payload{}
			p.Name, _ = cmd.Flags().GetString("name")
			p.Email, _ = cmd.Flags().GetString("email")
			p.Role, _ = cmd.Flags().GetString("role")

			created, err := users.NewGateway(a.api).Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("usuario %s creado (%s, %s)\n", created.ID, created.Email, created.Role)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "full name")
	createCmd.Flags().String("email", "", "email address")
	createCmd.Flags().String("role", authpkg.RoleCodificador, "role (Administrador, Analista, Codificador, Finanzas)")
	cmd.AddCommand(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p := users.Payload{}
			p.Name, _ = cmd.Flags().GetString("name")
			p.Email, _ = cmd.Flags().GetString("email")
			p.Role, _ = cmd.Flags().GetString("role")

			updated, err := users.NewGateway(a.api).Update(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			fmt.Printf("usuario %s actualizado (%s, %s)\n", updated.ID, updated.Email, updated.Role)
			return nil
		},
	}
	updateCmd.Flags().String("name", "", "full name")
	updateCmd.Flags().String("email", "", "email address")
	updateCmd.Flags().String("role", "", "role (Administrador, Analista, Codificador, Finanzas)")
	cmd.AddCommand(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes && !confirm(fmt.Sprintf("¿Eliminar el usuario %s?", args[0])) {
				fmt.Println("cancelado")
				return nil
			}
			if err := users.NewGateway(a.api).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("usuario %s eliminado\n", args[0])
			return nil
		},
	}
	deleteCmd.Flags().Bool("yes", false, "delete without asking for confirmation")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			me, err := users.NewGateway(a.api).Me(cmd.Context())
			if err != nil {
				if rest.IsAuth(err) {
					return fmt.Errorf("%w\nre-authenticate: refresh AUTH_TOKEN or check the OIDC client settings", err)
				}
				return err
			}
			fmt.Printf("%s <%s>\nrol: %s\n", me.Name, me.Email, me.Role)
			if authpkg.CanUpload(me.Role) {
				fmt.Println("puede importar archivos")
			}
			return nil
		},
	}
}

// parseAssignments turns "recordID.field=value" arguments into per-record
// field maps. Values are kept as strings; numeric coercion happens in the
// store at commit.
func parseAssignments(args []string) (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{})
	for _, arg := range args {
		eq := strings.Index(arg, "=")
		if eq < 0 {
			return nil, fmt.Errorf("invalid assignment %q, expected record-id.field=value", arg)
		}
		target, value := arg[:eq], arg[eq+1:]
		dot := strings.LastIndex(target, ".")
		if dot <= 0 || dot == len(target)-1 {
			return nil, fmt.Errorf("invalid assignment %q, expected record-id.field=value", arg)
		}
		recordID, field := target[:dot], target[dot+1:]
		if out[recordID] == nil {
			out[recordID] = make(map[string]interface{})
		}
		out[recordID][field] = value
	}
	return out, nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes" || answer == "s" || answer == "si" || answer == "sí"
}
