package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/auth"
	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/config"
	"carbon-scribe/mrv/mrv-backend/internal/credits"
	"carbon-scribe/mrv/mrv-backend/internal/farms"
	"carbon-scribe/mrv/mrv-backend/internal/reports"
	"carbon-scribe/mrv/mrv-backend/pkg/geospatial"
	"carbon-scribe/mrv/mrv-backend/pkg/logging"
)

const (
	defaultOutputDir   = "./output"
	statisticsFileName = "boundary_statistics.json"
	webExportFileName  = "farm_boundaries_web.geojson"
)

// errInvalidRecord marks a run that printed validation errors
var errInvalidRecord = errors.New("farm data failed validation")

type cli struct {
	logLevel string
	logger   *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "mrv",
		Short:        "Carbon credit estimation for agroforestry and rice farms",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(c.logLevel, true)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.carbonCommand(),
		c.validateCommand(),
		c.batchCommand(),
		c.parametersCommand(),
		c.boundaryCommand(),
		c.tokenCommand(),
	)
	return root
}

// recordInputs are the flags shared by commands reading farm records
type recordInputs struct {
	farmData   string
	boundaries string
	asOf       string
}

func (in *recordInputs) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.farmData, "farm-data", "", "path to farm data JSON (object or array)")
	cmd.Flags().StringVar(&in.boundaries, "boundaries", "", "optional GeoJSON FeatureCollection of farm boundaries")
	cmd.Flags().StringVar(&in.asOf, "as-of", "", "assessment instant, RFC 3339 or YYYY-MM-DD (default now)")
	cmd.MarkFlagRequired("farm-data")
}

func (in *recordInputs) load() ([]*calculation.FarmRecord, time.Time, error) {
	asOf := time.Now().UTC()
	if in.asOf != "" {
		t, err := credits.ParseAsOf(in.asOf)
		if err != nil {
			return nil, time.Time{}, err
		}
		asOf = t
	}

	records, err := farms.LoadRecordsFile(in.farmData)
	if err != nil {
		return nil, time.Time{}, err
	}
	return records, asOf, nil
}

// applyBoundaries fills record areas from the --boundaries file, if given
func (in *recordInputs) applyBoundaries(records []*calculation.FarmRecord, logger *zap.Logger) error {
	if in.boundaries == "" {
		return nil
	}

	data, err := os.ReadFile(in.boundaries)
	if err != nil {
		return fmt.Errorf("failed to read boundaries: %w", err)
	}
	boundaries, err := geospatial.LoadBoundaries(data)
	if err != nil {
		return err
	}

	matched := farms.EnrichWithBoundaries(records, boundaries)
	logger.Debug("Applied farm boundaries",
		zap.Int("boundaries", len(boundaries)),
		zap.Int("matched", matched))
	return nil
}

func (c *cli) carbonCommand() *cobra.Command {
	var (
		in        recordInputs
		farmID    string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "carbon",
		Short: "Calculate carbon credits for one farm and write its verification report",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, asOf, err := in.load()
			if err != nil {
				return err
			}
			record, err := selectRecord(records, farmID)
			if err != nil {
				return err
			}
			if err := in.applyBoundaries([]*calculation.FarmRecord{record}, c.logger); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Calculating carbon credits for farm %s\n", farmID)

			report, err := calculation.NewEngine().Assess(record, asOf)
			if err != nil {
				return err
			}
			if !report.IsReady() {
				fmt.Fprintln(out, "Validation errors:")
				for _, e := range report.ValidationErrors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
				return errInvalidRecord
			}

			path, err := reports.NewFileSink(outputDir).Write(report)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Carbon calculation complete: %s\n", path)
			c.logger.Info("Wrote report",
				zap.String("farm_id", report.FarmID),
				zap.Float64("total_credits", report.CalculationResults.TotalCredits))
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&farmID, "farm-id", "", "farm ID")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "output directory")
	cmd.MarkFlagRequired("farm-id")
	return cmd
}

// selectRecord picks the record for farmID. A lone record without a farm ID
// takes farmID.
func selectRecord(records []*calculation.FarmRecord, farmID string) (*calculation.FarmRecord, error) {
	for _, r := range records {
		if r.FarmID == farmID {
			return r, nil
		}
	}
	if len(records) == 1 {
		if records[0].FarmID == "" {
			records[0].FarmID = farmID
			return records[0], nil
		}
		return nil, fmt.Errorf("farm data is for farm %q, not %q", records[0].FarmID, farmID)
	}
	return nil, fmt.Errorf("farm %q not found in farm data", farmID)
}

func (c *cli) validateCommand() *cobra.Command {
	var in recordInputs

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check farm records against the validation rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, asOf, err := in.load()
			if err != nil {
				return err
			}
			if err := in.applyBoundaries(records, c.logger); err != nil {
				return err
			}

			engine := calculation.NewEngine()
			out := cmd.OutOrStdout()
			invalid := 0
			for i, record := range records {
				errs := engine.Validate(record, asOf)
				if len(errs) == 0 {
					fmt.Fprintf(out, "%s: valid\n", recordLabel(i, record))
					continue
				}
				invalid++
				fmt.Fprintf(out, "%s: %d validation error(s)\n", recordLabel(i, record), len(errs))
				for _, e := range errs {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d record(s): %w", invalid, len(records), errInvalidRecord)
			}
			return nil
		},
	}

	in.register(cmd)
	return cmd
}

func recordLabel(i int, record *calculation.FarmRecord) string {
	if record.FarmID == "" {
		return fmt.Sprintf("record %d", i)
	}
	return record.FarmID
}

func (c *cli) batchCommand() *cobra.Command {
	var (
		in        recordInputs
		outputDir string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Assess every record in a file and write one report per farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, asOf, err := in.load()
			if err != nil {
				return err
			}
			if err := in.applyBoundaries(records, c.logger); err != nil {
				return err
			}

			service := credits.NewService(calculation.NewEngine(), reports.NewFileSink(outputDir), nil, c.logger)
			outcomes, err := service.AssessBatchDistinct(cmd.Context(), records, asOf, workers)
			if err != nil {
				return err
			}

			summary := credits.Summarize(outcomes)
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"summary":  summary,
				"outcomes": outcomeLines(outcomes),
			}); err != nil {
				return err
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d record(s) failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "output directory")
	cmd.Flags().IntVar(&workers, "workers", credits.DefaultBatchWorkers, "concurrent assessments")
	return cmd
}

type outcomeLine struct {
	FarmID             string                         `json:"farm_id"`
	VerificationStatus calculation.VerificationStatus `json:"verification_status,omitempty"`
	TotalCredits       *float64                       `json:"total_credits,omitempty"`
	Error              string                         `json:"error,omitempty"`
}

func outcomeLines(outcomes []credits.BatchOutcome) []outcomeLine {
	lines := make([]outcomeLine, 0, len(outcomes))
	for _, o := range outcomes {
		line := outcomeLine{FarmID: o.FarmID, Error: o.Error}
		if o.Report != nil {
			line.VerificationStatus = o.Report.VerificationStatus
			if o.Report.CalculationResults != nil {
				total := o.Report.CalculationResults.TotalCredits
				line.TotalCredits = &total
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func (c *cli) parametersCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "parameters <project-type>",
		Short:     "Print the catalog coefficients for a project type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(calculation.ProjectTypeAgroforestry), string(calculation.ProjectTypeRice)},
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := calculation.ParametersFor(args[0])
			if err != nil {
				return fmt.Errorf("%w (supported: %v)", err, calculation.SupportedProjectTypes())
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"project_type": params.ProjectType(),
				"parameters":   params,
			})
		},
	}
}

func (c *cli) boundaryCommand() *cobra.Command {
	var (
		inputFile string
		outputDir string
		exportWeb bool
		stats     bool
		near      string
		radiusKm  float64
	)

	cmd := &cobra.Command{
		Use:   "boundary",
		Short: "Compute farm boundary areas and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(inputFile)
			if err != nil {
				return fmt.Errorf("failed to read boundaries: %w", err)
			}
			var center orb.Point
			if near != "" {
				if center, err = parsePoint(near); err != nil {
					return err
				}
				if radiusKm <= 0 {
					return errors.New("--radius-km must be positive when --near is set")
				}
			}

			boundaries, err := geospatial.LoadBoundaries(data)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %d farm boundaries\n", len(boundaries))

			for _, o := range geospatial.FindOverlaps(boundaries) {
				a, b := boundaryLabel(o.IndexA, o.FarmA), boundaryLabel(o.IndexB, o.FarmB)
				c.logger.Warn("Farm boundaries overlap", zap.String("first", a), zap.String("second", b))
				fmt.Fprintf(out, "Warning: boundaries %s and %s overlap\n", a, b)
			}

			if near != "" {
				found := geospatial.WithinRadius(boundaries, center, radiusKm)
				fmt.Fprintf(out, "Found %d farm boundaries within %g km of %g,%g\n", len(found), radiusKm, center.Lon(), center.Lat())
				for _, b := range found {
					fmt.Fprintf(out, "  %s: %.2f ha\n", b.FarmID, b.AreaHa)
				}
			}

			if exportWeb {
				path := filepath.Join(outputDir, webExportFileName)
				if err := writeJSONFile(path, geospatial.FeatureCollection(boundaries)); err != nil {
					return err
				}
				fmt.Fprintf(out, "Web-optimized boundaries exported: %s\n", path)
			}

			if stats {
				path := filepath.Join(outputDir, statisticsFileName)
				if err := writeJSONFile(path, geospatial.ComputeStatistics(boundaries)); err != nil {
					return err
				}
				fmt.Fprintf(out, "Boundary statistics exported: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputFile, "input-file", "", "GeoJSON FeatureCollection of farm boundaries")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "output directory")
	cmd.Flags().BoolVar(&exportWeb, "export-web", false, "export boundaries with computed area_ha")
	cmd.Flags().BoolVar(&stats, "stats", false, "write boundary statistics")
	cmd.Flags().StringVar(&near, "near", "", "list farms near lon,lat")
	cmd.Flags().Float64Var(&radiusKm, "radius-km", 0, "search radius for --near in kilometres")
	cmd.MarkFlagRequired("input-file")
	return cmd
}

// parsePoint reads "lon,lat" in decimal degrees
func parsePoint(s string) (orb.Point, error) {
	lon, lat, ok := strings.Cut(s, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("invalid point %q: want lon,lat", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	if x < -180 || x > 180 || y < -90 || y > 90 {
		return orb.Point{}, fmt.Errorf("point %q is out of range", s)
	}
	return orb.Point{x, y}, nil
}

func boundaryLabel(index int, farmID string) string {
	if farmID == "" {
		return fmt.Sprintf("#%d", index)
	}
	return farmID
}

func (c *cli) tokenCommand() *cobra.Command {
	var (
		configPath string
		secret     string
		issuer     string
		subject    string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the protected API routes",
		Long: "Issue a bearer token for the protected API routes. The secret and issuer\n" +
			"default to JWT_SECRET and the API configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("secret") {
				secret = cfg.Security.JWTSecret
			}
			if !cmd.Flags().Changed("issuer") {
				issuer = cfg.Security.JWTIssuer
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			token, err := auth.NewTokenManager(secret, issuer).Issue(subject, role, ttl)
			if err != nil {
				return err
			}
			c.logger.Info("Issued token",
				zap.String("subject", subject),
				zap.String("role", role),
				zap.Duration("ttl", ttl))

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional JSON config file")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer (default from config)")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
