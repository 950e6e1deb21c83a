package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
	"corticaldepth/pkg/bootstrap"
	"corticaldepth/pkg/config"
	"corticaldepth/pkg/pipeline"
	"corticaldepth/pkg/profileio"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing per-condition depth-profile CSV files")
	conditionList := flag.String("conditions", "", "Comma-separated condition names (one CSV file each)")
	configPath := flag.String("config", "corticaldepth.yaml", "Path to YAML configuration file")
	outputDir := flag.String("output", "results", "Directory for result CSV files")
	variant := flag.Int("model", 0, "Draining model variant 1-6 (overrides config)")
	region := flag.String("region", "", "Cortical region, striate or extrastriate (overrides config)")
	iterations := flag.Int("iterations", 0, "Bootstrap / noise / Monte Carlo iteration count (overrides config)")
	seed := flag.Uint64("seed", 0, "Random seed (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" || *conditionList == "" {
		flag.Usage()
		os.Exit(1)
	}
	conditions := strings.Split(*conditionList, ",")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *variant != 0 {
		cfg.Model.Variant = *variant
	}
	if *region != "" {
		cfg.Model.Region = *region
	}
	if *iterations != 0 {
		cfg.Inference.Iterations = *iterations
	}
	if *seed != 0 {
		cfg.Inference.Seed = *seed
	}

	params, err := paramsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	params.IntermediaryDir = filepath.Join(*outputDir, cfg.Output.IntermediaryDir)

	fmt.Println("================================")
	fmt.Println("MODEL-BASED CORRECTION OF THE DRAINING EFFECT IN LAMINAR DEPTH PROFILES")
	fmt.Println("Cortical vascular model after Markuerkiaga et al. (2016)")
	fmt.Println("================================")

	// Load profiles, one CSV per condition
	profiles, err := profileio.LoadProfiles(*inputDir, conditions)
	if err != nil {
		log.Fatalf("Failed to load profiles: %v", err)
	}
	numSub, numCon, numDepth, err := profiles.Dims()
	if err != nil {
		log.Fatalf("Inconsistent input profiles: %v", err)
	}
	fmt.Printf("Loaded %d subjects, %d conditions, %d depth levels\n", numSub, numCon, numDepth)

	// All pairwise contrast comparisons, matching the original analysis
	// layout (A-B vs A-C for every condition triple).
	params.Comparisons = pairwiseComparisons(numCon)

	// Run the analysis pipeline
	analysis := pipeline.NewAnalysis(params)
	startTime := time.Now()
	if err := analysis.Run(profiles); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	fmt.Printf("\nAnalysis completed in %.2f seconds\n\n", time.Since(startTime).Seconds())

	results := analysis.Results()
	printResults(results, conditions)

	if err := saveResults(*outputDir, conditions, results); err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}
	fmt.Printf("\nResult CSV files saved to: %s\n", *outputDir)
}

// paramsFromConfig maps the YAML configuration onto pipeline parameters.
func paramsFromConfig(cfg *config.Config) (*pipeline.Params, error) {
	region := anatomy.Striate
	switch cfg.Model.Region {
	case "striate", "v1":
		region = anatomy.Striate
	case "extrastriate", "v2", "v3":
		region = anatomy.Extrastriate
	default:
		return nil, fmt.Errorf("unknown region %q", cfg.Model.Region)
	}

	stat := bootstrap.Mean
	switch cfg.Inference.Statistic {
	case "mean":
		stat = bootstrap.Mean
	case "median":
		stat = bootstrap.Median
	default:
		return nil, fmt.Errorf("unknown statistic %q", cfg.Inference.Statistic)
	}

	return &pipeline.Params{
		Variant:                 cfg.Model.Variant,
		Region:                  region,
		Iterations:              cfg.Inference.Iterations,
		Lower:                   cfg.Inference.LowerPercentile,
		Upper:                   cfg.Inference.UpperPercentile,
		Stat:                    stat,
		NoiseSD:                 cfg.Model.NoiseSD,
		SystematicBias:          cfg.Model.SystematicBias,
		DeepFactors:             cfg.Model.DeepFactors,
		UpsampleFactor:          cfg.Inference.UpsampleFactor,
		SmoothSD:                cfg.Inference.SmoothSD,
		Workers:                 cfg.Processing.NumCores,
		Seed:                    cfg.Inference.Seed,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
	}, nil
}

// pairwiseComparisons enumerates every pair of condition contrasts sharing
// the first condition as common reference.
func pairwiseComparisons(numCon int) []pipeline.Comparison {
	var out []pipeline.Comparison
	for a := 1; a < numCon; a++ {
		for b := a + 1; b < numCon; b++ {
			out = append(out, pipeline.Comparison{A: [2]int{0, a}, B: [2]int{0, b}})
		}
	}
	return out
}

// printResults writes the summary tables to standard output.
func printResults(results *pipeline.Results, conditions []string) {
	if results.PeaksCorrected != nil {
		fmt.Println("Peak positions (across-subject mean profiles):")
		fmt.Println("==============================================")
		for c, name := range conditions {
			before := results.PeaksUncorrected[c]
			after := results.PeaksCorrected[c]
			fmt.Printf("%-24s uncorrected: %s  corrected: %s\n", name, formatPeak(before), formatPeak(after))
		}
	}

	for _, rec := range results.Permutations {
		o := rec.Outcome
		fmt.Printf("\nPermutation test %s:\n", rec.Comparison.Label(conditions))
		fmt.Printf("  Peak A: %s  Peak B: %s\n", formatPeak(o.PeakA), formatPeak(o.PeakB))
		fmt.Printf("  Peak-position difference: %.4f\n", o.Diff)
		fmt.Printf("  Samples: %d (exact: %v), peak ratio: %.1f%%\n", o.Samples, o.Exact, o.PeakRatio)
		fmt.Printf("  p-value: %.4f\n", o.PValue)
	}
}

func formatPeak(p models.PeakEstimate) string {
	if !p.Found {
		return "none"
	}
	return fmt.Sprintf("%.4f", p.Position)
}

// saveResults writes the confidence interval and corrected profiles as CSV.
func saveResults(dir string, conditions []string, results *pipeline.Results) error {
	iv := results.Interval
	if iv != nil {
		if err := profileio.SaveMatrixCSV(filepath.Join(dir, "ci_point.csv"), iv.Point); err != nil {
			return err
		}
		if err := profileio.SaveMatrixCSV(filepath.Join(dir, "ci_lower.csv"), iv.Lower); err != nil {
			return err
		}
		if err := profileio.SaveMatrixCSV(filepath.Join(dir, "ci_upper.csv"), iv.Upper); err != nil {
			return err
		}
	}
	for s, sub := range results.Corrected {
		path := filepath.Join(dir, "corrected", fmt.Sprintf("subject_%02d.csv", s))
		if err := profileio.SaveMatrixCSV(path, sub); err != nil {
			return err
		}
	}
	if len(results.Permutations) > 0 {
		if err := savePermutations(filepath.Join(dir, "permutation_tests.csv"), conditions, results.Permutations); err != nil {
			return err
		}
	}
	return nil
}

// savePermutations writes one summary row per permutation test.
func savePermutations(path string, conditions []string, records []pipeline.PermutationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := []string{"comparison", "peak_a", "peak_b", "difference", "p_value", "peak_ratio_percent", "samples", "exact"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		o := rec.Outcome
		row := []string{
			rec.Comparison.Label(conditions),
			formatPeak(o.PeakA),
			formatPeak(o.PeakB),
			strconv.FormatFloat(o.Diff, 'g', -1, 64),
			strconv.FormatFloat(o.PValue, 'g', -1, 64),
			strconv.FormatFloat(o.PeakRatio, 'f', 1, 64),
			strconv.Itoa(o.Samples),
			strconv.FormatBool(o.Exact),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
