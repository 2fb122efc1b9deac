// Command reelforge-bounce renders a serialized project to an audio
// file offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Bojan20/reelforge/pkg/automation"
	"github.com/Bojan20/reelforge/pkg/bounce"
	"github.com/Bojan20/reelforge/pkg/config"
	"github.com/Bojan20/reelforge/pkg/engine"
	"github.com/Bojan20/reelforge/pkg/importer"
	"github.com/Bojan20/reelforge/pkg/processor"
	"github.com/Bojan20/reelforge/pkg/state"
)

var (
	flagConfig    string
	flagOutput    string
	flagFormat    string
	flagBitDepth  int
	flagRate      uint32
	flagStart     uint64
	flagEnd       uint64
	flagTailSecs  float64
	flagNormalize bool
	flagLimiter   bool
	flagBitrate   uint32
)

func main() {
	root := &cobra.Command{
		Use:   "reelforge-bounce <project.json>",
		Short: "Render a ReelForge project to an audio file",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	root.Flags().StringVarP(&flagConfig, "config", "c", "", "engine config YAML")
	root.Flags().StringVarP(&flagOutput, "output", "o", "bounce.wav", "output file path")
	root.Flags().StringVarP(&flagFormat, "format", "f", "wav", "output format: wav, flac, mp3")
	root.Flags().IntVarP(&flagBitDepth, "bits", "b", 24, "bit depth: 16, 24, 32")
	root.Flags().Uint32Var(&flagRate, "rate", 0, "target sample rate (0 = engine rate)")
	root.Flags().Uint64Var(&flagStart, "start", 0, "region start in samples")
	root.Flags().Uint64Var(&flagEnd, "end", 0, "region end in samples (0 = project end)")
	root.Flags().Float64Var(&flagTailSecs, "tail", 0, "extra tail seconds")
	root.Flags().BoolVar(&flagNormalize, "normalize", false, "normalize to -0.3 dBFS (gain never exceeds unity)")
	root.Flags().BoolVar(&flagLimiter, "limiter", false, "run a -0.3 dB master limiter")
	root.Flags().Uint32Var(&flagBitrate, "bitrate", 320, "MP3 CBR bitrate in kbps")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.Default()
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read project: %w", err)
	}
	project, err := state.Decode(data)
	if err != nil {
		return fmt.Errorf("decode project: %w", err)
	}
	log.Info("project loaded",
		zap.String("name", project.Name),
		zap.Int("audio_clips", len(project.Pool.AudioClips)),
		zap.Int("events", len(project.Events.AudioEvents)))

	eng := engine.New(cfg.SampleRate)

	// Decode every referenced source into the engine cache.
	im := importer.New(log)
	for _, clip := range project.Pool.AudioClips {
		audio, err := im.Import(clip.SourcePath)
		if err != nil {
			log.Warn("clip source failed to decode, it will render silent",
				zap.String("path", clip.SourcePath), zap.Error(err))
			continue
		}
		eng.Cache().Insert(clip.SourcePath, audio)
	}

	auto := automation.NewEngine()
	project.ImportLanes(auto)
	eng.SetTimeline(project.Pool, project.Events, project.TempoMap, auto)

	// Route every track present on the timeline to the music bus.
	seen := map[uint64]bool{}
	for _, ev := range project.Events.AudioEvents {
		if !seen[ev.TrackID] {
			seen[ev.TrackID] = true
			eng.RegisterTrack(ev.TrackID, engine.TrackRoute{Bus: engine.BusMusic, Volume: 1})
		}
	}
	for i, bs := range project.BusStates {
		eng.SetBusVolume(i, bs.Volume)
		eng.SetBusPan(i, bs.Pan)
		eng.SetBusPanRight(i, bs.PanRight)
		eng.SetBusMuted(i, bs.Muted)
		eng.SetBusSoloed(i, bs.Soloed)
	}
	eng.Play()

	end := flagEnd
	if end == 0 {
		for _, ev := range project.Events.AudioEvents {
			if e := ev.End(); e > end {
				end = e
			}
		}
	}
	if end <= flagStart {
		return fmt.Errorf("empty render region: start %d, end %d", flagStart, end)
	}

	format := bounce.FormatWav
	switch flagFormat {
	case "flac":
		format = bounce.FormatFlac
	case "mp3":
		format = bounce.FormatMp3
	}
	depth := bounce.Depth24
	switch flagBitDepth {
	case 16:
		depth = bounce.Depth16
	case 32:
		depth = bounce.Depth32
	}

	bcfg := bounce.Config{
		Region: bounce.Region{
			StartSamples: flagStart,
			EndSamples:   end,
			IncludeTail:  flagTailSecs > 0,
			TailSecs:     flagTailSecs,
		},
		Format: bounce.ExportFormat{
			Format:          format,
			SampleRate:      flagRate,
			BitDepth:        depth,
			Dither:          bounce.DitherTriangular,
			Normalize:       flagNormalize,
			NormalizeTarget: -0.3,
			BitrateKbps:     flagBitrate,
		},
		OutputPath:       flagOutput,
		BlockSize:        cfg.BlockSize,
		SourceSampleRate: cfg.SampleRate,
		NumChannels:      2,
	}

	var chain *processor.Chain
	if flagLimiter {
		chain = processor.NewChain(
			processor.NewDcBlock(float64(cfg.SampleRate)),
			processor.NewLimiter(float64(cfg.SampleRate), -0.3),
		)
	}

	renderer := bounce.NewRenderer(bcfg, log)
	renderer.SetProgressFunc(func(p bounce.Progress) {
		if p.IsComplete {
			fmt.Fprintf(os.Stderr, "\rdone: peak %.3f          \n", p.PeakLevel)
			return
		}
		fmt.Fprintf(os.Stderr, "\r%5.1f%%  %.1fx realtime  eta %4.0fs",
			p.Percent, p.SpeedFactor, p.EtaSecs)
	})

	path, err := renderer.Render(bounce.NewEngineSource(eng), chain)
	if err != nil {
		return err
	}
	log.Info("bounce written", zap.String("path", path))
	fmt.Println(path)
	return nil
}
