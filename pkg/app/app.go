package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/zurustar/bandforge/pkg/band"
	"github.com/zurustar/bandforge/pkg/cli"
	"github.com/zurustar/bandforge/pkg/instrument"
	"github.com/zurustar/bandforge/pkg/logger"
	"github.com/zurustar/bandforge/pkg/mix"
	"github.com/zurustar/bandforge/pkg/note"
	"github.com/zurustar/bandforge/pkg/pcm"
	"github.com/zurustar/bandforge/pkg/render"
	"github.com/zurustar/bandforge/pkg/synth"
	"github.com/zurustar/bandforge/pkg/waveform"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config        *cli.Config
	log           *slog.Logger
	bank          *synth.Bank // nilの場合は代替シンセサイザーを使う
	soundFontDirs []string
}

// New Applicationを作成
func New() *Application {
	return &Application{
		soundFontDirs: DefaultSoundFontDirs,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "command", app.config.Command)

	// 3. タイムアウトと割り込みの設定
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	// 4. SoundFontの読み込み（mix以外）
	if app.config.Command != cli.CommandMix {
		app.loadSoundFont()
	}

	// 5. サブコマンドの実行
	var err error
	switch app.config.Command {
	case cli.CommandRender:
		err = app.runRender(ctx)
	case cli.CommandMix:
		err = app.runMix(ctx)
	case cli.CommandBand:
		err = app.runBand(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", app.config.Command, err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadSoundFont SoundFontを検索して読み込む
// 見つからない、または読み込めない場合は警告を出して代替シンセサイザーを使う
func (app *Application) loadSoundFont() {
	loc := findSoundFont(app.config.SoundFont, app.soundFontDirs)
	if loc == nil {
		app.log.Warn("No SoundFont found, renders will use the additive fallback", "searched", DefaultSoundFontNames)
		return
	}

	bank, err := synth.LoadBank(loc.Path)
	if err != nil {
		app.log.Warn("SoundFont could not be loaded, renders will use the additive fallback", "path", loc.Path, "error", err)
		return
	}
	app.log.Info("SoundFont loaded", "path", loc.Path, "explicit", loc.Explicit)
	app.bank = bank
}

// newRenderer 設定からRendererを作成
func (app *Application) newRenderer() *render.Renderer {
	return render.New(app.bank, render.Options{
		SampleRate: app.config.SampleRate,
		ChunkSize:  app.config.ChunkSize,
		Tail:       app.config.Tail,
		Headroom:   app.config.Headroom,
		Logger:     app.log,
	})
}

// newMixer 設定からMixerを作成
func (app *Application) newMixer() *mix.Mixer {
	return mix.New(mix.Options{Headroom: app.config.Headroom, Logger: app.log})
}

// runRender ノート列を1トラックにレンダリング
func (app *Application) runRender(ctx context.Context) error {
	notes := app.loadNotes()

	part := instrument.Resolve(app.config.Instrument)
	if !part.Known {
		app.log.Warn("Unknown instrument, using the default program", "instrument", app.config.Instrument, "program", part.Program)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := app.newRenderer().RenderFile(notes, part, app.config.Output, app.config.MIDIPath)
	if err != nil {
		return err
	}
	app.writePreview(buf)
	return nil
}

// loadNotes ノート列を読み込む
// ファイル未指定、読み込み失敗、解析失敗の場合は固定のフレーズを使う
func (app *Application) loadNotes() []note.Event {
	if app.config.NotesPath == "" {
		app.log.Warn("No notes given, using the fallback timeline")
		return note.Normalize(note.FallbackTimeline())
	}
	data, err := os.ReadFile(app.config.NotesPath)
	if err != nil {
		app.log.Warn("Notes could not be read, using the fallback timeline", "path", app.config.NotesPath, "error", err)
		return note.Normalize(note.FallbackTimeline())
	}
	notes, _ := note.ParseOrFallback(data, app.log.With("path", app.config.NotesPath))
	app.log.Debug("Notes loaded", "count", len(notes), "seconds", note.Extent(notes))
	return notes
}

// runMix 複数トラックをミックス
func (app *Application) runMix(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := app.newMixer().Combine(app.config.Inputs, app.config.Output)
	if err != nil {
		return err
	}
	app.writePreview(buf)
	return nil
}

// runBand バンド設定の全パートをレンダリングしてミックス
func (app *Application) runBand(ctx context.Context) error {
	cfg, err := band.LoadConfig(app.config.ConfigPath)
	if err != nil {
		return err
	}
	if app.config.Waveform != "" {
		cfg.Waveform = app.config.Waveform
	}

	job := band.NewJob(*cfg, band.FileSource{}, app.newRenderer(), app.newMixer(), app.log)
	result, err := job.Run(ctx)
	if err != nil {
		return err
	}

	for _, track := range result.Tracks {
		app.log.Info("Band track", "path", track)
	}
	if len(result.Fallbacks) > 0 {
		app.log.Warn("Some parts used the fallback timeline", "instruments", result.Fallbacks)
	}
	app.log.Info("Band mix written", "path", result.Mix)
	return nil
}

// writePreview 波形プレビューを書き出す（失敗しても処理は続行）
func (app *Application) writePreview(buf *pcm.Buffer) {
	if app.config.Waveform == "" {
		return
	}
	if err := waveform.WriteFile(app.config.Waveform, buf, 0, 0); err != nil {
		app.log.Warn("Waveform preview not written", "path", app.config.Waveform, "error", err)
		return
	}
	app.log.Info("Waveform preview written", "path", app.config.Waveform)
}
