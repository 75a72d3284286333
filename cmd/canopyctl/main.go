package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/canopyview/internal/adapters/gemini"
	natsadapter "github.com/samirrijal/canopyview/internal/adapters/nats"
	"github.com/samirrijal/canopyview/internal/adapters/streetview"
	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/core/ports"
	"github.com/samirrijal/canopyview/internal/core/usecases"
	"github.com/samirrijal/canopyview/internal/pkg/config"
	"github.com/samirrijal/canopyview/internal/pkg/logging"
)

var (
	lat, lng    float64
	heading     float64
	pitch       float64
	fov         float64
	treeFlags   []string
	fromCoords  bool
	outDir      string
	outcomeFlag string
)

var rootCmd = &cobra.Command{
	Use:   "canopyctl",
	Short: "Preview and run Street View tree compositing",
	Long:  `Describe where trees land in a Street View frame, composite them with the generative model, or watch transform events.`,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print placement descriptions and the generation prompt",
	Long: `Describe trees relative to a camera heading without calling any provider.
Trees are given as species:bearing:distance, or as species:lat:lng with --from-coords.`,
	RunE: runDescribe,
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Fetch a frame and composite trees onto it",
	Long:  `Run a full transform using the configured API keys and write original.jpg and the transformed image to --out.`,
	RunE:  runTransform,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream transform events from NATS",
	RunE:  runWatch,
}

func init() {
	for _, cmd := range []*cobra.Command{describeCmd, transformCmd} {
		cmd.Flags().Float64Var(&lat, "lat", 0, "Viewpoint latitude")
		cmd.Flags().Float64Var(&lng, "lng", 0, "Viewpoint longitude")
		cmd.Flags().Float64Var(&heading, "heading", 0, "Camera heading in degrees, 0 = north")
		cmd.Flags().StringArrayVarP(&treeFlags, "tree", "t", nil, "Tree as species:bearing:distance (repeatable)")
		cmd.Flags().BoolVar(&fromCoords, "from-coords", false, "Trees are species:lat:lng; keep only those in view")
	}
	transformCmd.Flags().Float64Var(&pitch, "pitch", 0, "Camera pitch in degrees")
	transformCmd.Flags().Float64Var(&fov, "fov", 90, "Field of view in degrees")
	transformCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	_ = transformCmd.MarkFlagRequired("lat")
	_ = transformCmd.MarkFlagRequired("lng")

	watchCmd.Flags().StringVar(&outcomeFlag, "outcome", "", "Only show events with this outcome (completed, precondition_failed, fetch_failed, generation_failed, failed)")

	rootCmd.AddCommand(describeCmd, transformCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveTrees parses --tree flags. With --from-coords, coordinates are
// converted to bearings and filtered by the configured visibility limits.
func resolveTrees(cfg *config.Config) ([]domain.TreePlacement, error) {
	if !fromCoords {
		trees := make([]domain.TreePlacement, 0, len(treeFlags))
		for _, s := range treeFlags {
			p, err := parsePlacement(s)
			if err != nil {
				return nil, err
			}
			trees = append(trees, p)
		}
		return trees, nil
	}

	locations := make([]domain.TreeLocation, 0, len(treeFlags))
	for _, s := range treeFlags {
		l, err := parseLocation(s)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	resolver := usecases.NewVisibilityResolver(cfg.Visibility.MaxRelativeBearing, cfg.Visibility.MaxDistance)
	return resolver.VisibleTrees(domain.Viewpoint{Lat: lat, Lng: lng, Heading: heading}, locations), nil
}

// checkViewpointFlags requires an explicit --lat and --lng when trees are
// given as coordinates.
func checkViewpointFlags(cmd *cobra.Command) error {
	if on, _ := cmd.Flags().GetBool("from-coords"); !on {
		return nil
	}
	for _, name := range []string{"lat", "lng"} {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is required with --from-coords", name)
		}
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	if err := checkViewpointFlags(cmd); err != nil {
		return err
	}
	cfg, err := config.Load("canopyctl")
	if err != nil {
		return err
	}
	trees, err := resolveTrees(cfg)
	if err != nil {
		return err
	}
	if len(trees) == 0 {
		return errors.New("no trees to describe")
	}

	placements, prompt := usecases.PromptFor(heading, trees)
	out := cmd.OutOrStdout()
	for _, p := range placements {
		fmt.Fprintf(out, "%+7.1f°  %s\n", p.RelativeBearing, p.Description)
	}
	fmt.Fprintf(out, "\n%s\n", prompt)
	return nil
}

func runTransform(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("canopyctl")
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, "text", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trees, err := resolveTrees(cfg)
	if err != nil {
		return err
	}

	var imagery ports.ImageryProvider
	if cfg.Imagery.APIKey != "" {
		sv, err := streetview.New(streetview.Options{
			APIKey:        cfg.Imagery.APIKey,
			BaseURL:       cfg.Imagery.BaseURL,
			Timeout:       cfg.Imagery.Timeout,
			RatePerSecond: cfg.Imagery.RatePerSecond,
			Burst:         cfg.Imagery.Burst,
		})
		if err != nil {
			return err
		}
		imagery = sv
	}

	var generator ports.ImageGenerator
	if cfg.Generation.APIKey != "" {
		gen, err := gemini.New(ctx, gemini.Options{
			APIKey:  cfg.Generation.APIKey,
			Model:   cfg.Generation.Model,
			BaseURL: cfg.Generation.BaseURL,
		})
		if err != nil {
			return err
		}
		generator = gen
	}

	svc := usecases.NewTransformService(imagery, generator, nil, cfg.Generation.Timeout)
	vp := domain.Viewpoint{Lat: lat, Lng: lng, Heading: heading, Pitch: pitch, FOV: fov}
	result, err := svc.Transform(ctx, vp, trees)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	original, err := writeImage(outDir, "original", result.OriginalImage)
	if err != nil {
		return err
	}
	transformed, err := writeImage(outDir, "transformed", result.TransformedImage)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "trees added: %d\n%s\n%s\n", result.TreesAdded, original, transformed)
	return nil
}

// writeImage decodes b64 and writes it with an extension matching its content.
func writeImage(dir, name, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	ext := ".jpg"
	switch http.DetectContentType(data) {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	path := filepath.Join(dir, name+ext)
	return path, os.WriteFile(path, data, 0o644)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outcome, err := domain.ParseTransformOutcome(outcomeFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load("canopyctl")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer conn.Close()

	sub := natsadapter.NewSubscriber(conn)
	defer sub.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	err = sub.SubscribeTransformEvents(ctx, outcome, func(ctx context.Context, event *domain.TransformEvent) {
		_ = enc.Encode(event)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", cfg.NATS.URL)
	<-ctx.Done()
	return nil
}
