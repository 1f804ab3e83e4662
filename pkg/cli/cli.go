package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Command はサブコマンド名
type Command string

const (
	CommandRender Command = "render" // ノート列を1トラックのWAVにレンダリング
	CommandMix    Command = "mix"    // 複数トラックをミックス
	CommandBand   Command = "band"   // バンド設定から全パートをレンダリングしてミックス
)

// デフォルト値
const (
	DefaultSampleRate = 44100
	DefaultTail       = 2.0
	DefaultChunkSize  = 64
	DefaultHeadroom   = 0.8
	DefaultInstrument = "piano"
	DefaultLogLevel   = "info"
)

// ErrUnknownCommand は未知のサブコマンドが指定された場合のエラー
var ErrUnknownCommand = errors.New("unknown command")

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command    Command
	SoundFont  string        // SoundFontのパス（空なら既定の検索順）
	SampleRate int           // 出力サンプルレート（Hz）
	Tail       float64       // 最後のイベント後の余韻（秒）
	ChunkSize  int           // 1回のレンダリング要求のフレーム数
	Headroom   float64       // 正規化後のピーク
	Timeout    time.Duration // タイムアウト時間（0は無制限）
	LogLevel   string        // ログレベル（debug, info, warn, error）
	Waveform   string        // 波形プレビューBMPの出力先
	ShowHelp   bool          // ヘルプ表示フラグ

	// render
	NotesPath  string // ノート列（JSON）のファイル
	Instrument string
	MIDIPath   string // 中間MIDIファイルの出力先（空なら出力しない）

	// render, mix
	Output string

	// mix
	Inputs []string

	// band
	ConfigPath string
}

// ParseArgs コマンドライン引数を解析してConfigを返す
// 最初の引数がサブコマンド、残りがそのフラグと位置引数
func ParseArgs(args []string) (*Config, error) {
	config := &Config{}
	if len(args) == 0 {
		config.ShowHelp = true
		return config, nil
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		config.ShowHelp = true
		return config, nil
	}

	config.Command = Command(args[0])
	switch config.Command {
	case CommandRender, CommandMix, CommandBand:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}

	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args[1:])

	fs := flag.NewFlagSet("bandforge "+args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", DefaultLogLevel, "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", DefaultLogLevel, "ログレベル（短縮形）")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFontファイル")
	fs.IntVar(&config.SampleRate, "sample-rate", 0, "サンプルレート（Hz）")
	fs.Float64Var(&config.Tail, "tail", DefaultTail, "余韻（秒）")
	fs.IntVar(&config.ChunkSize, "chunk", DefaultChunkSize, "チャンクサイズ（フレーム）")
	fs.Float64Var(&config.Headroom, "headroom", DefaultHeadroom, "正規化後のピーク（0〜1）")
	fs.StringVar(&config.Waveform, "waveform", "", "波形プレビューBMPの出力先")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	switch config.Command {
	case CommandRender:
		fs.StringVar(&config.NotesPath, "notes", "", "ノート列（JSON）のファイル")
		fs.StringVar(&config.Instrument, "instrument", DefaultInstrument, "楽器名")
		fs.StringVar(&config.Output, "o", "", "出力WAVファイル")
		fs.StringVar(&config.MIDIPath, "midi", "", "中間MIDIファイルの出力先")
	case CommandMix:
		fs.StringVar(&config.Output, "o", "", "出力WAVファイル")
	case CommandBand:
		fs.StringVar(&config.ConfigPath, "config", "", "バンド設定（JSON）")
	}

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}
	if config.ShowHelp {
		return config, nil
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("SOUNDFONT")
	}

	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
		if rateEnv := os.Getenv("SAMPLE_RATE"); rateEnv != "" {
			if r, err := strconv.Atoi(rateEnv); err == nil && r > 0 {
				config.SampleRate = r
			}
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == DefaultLogLevel {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if err := validate(config, timeoutSec); err != nil {
		return nil, err
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// 位置引数（mixの入力トラック）
	if config.Command == CommandMix {
		config.Inputs = fs.Args()
		if len(config.Inputs) == 0 {
			return nil, fmt.Errorf("mix needs at least one input track")
		}
	} else if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return config, nil
}

// validate 値の範囲と必須フラグを検証
func validate(config *Config, timeoutSec int) error {
	// タイムアウトの検証
	if timeoutSec < 0 {
		return fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if config.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.Tail < 0 {
		return fmt.Errorf("tail must be non-negative, got %g", config.Tail)
	}
	if config.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.Headroom <= 0 || config.Headroom > 1 {
		return fmt.Errorf("headroom must be in (0, 1], got %g", config.Headroom)
	}

	switch config.Command {
	case CommandRender, CommandMix:
		if config.Output == "" {
			return fmt.Errorf("%s needs an output file (-o)", config.Command)
		}
	case CommandBand:
		if config.ConfigPath == "" {
			return fmt.Errorf("band needs a config file (-config)")
		}
	}
	return nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// 次の引数が値である可能性をチェック
			// （-o out.wav のような場合）
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				// ブール型フラグと=付きのフラグは次の引数を取らない
				if !isBoolFlag(arg) && !strings.Contains(arg, "=") {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch arg {
	case "-h", "--h", "-help", "--help":
		return true
	}
	return false
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprint(os.Stdout, helpText)
}

const helpText = `bandforge - note timeline renderer and band mixer

Usage:
  bandforge render [options] -o <out.wav>
  bandforge mix [options] -o <out.wav> <track>...
  bandforge band [options] -config <band.json>

Commands:
  render    ノート列（JSON）を1つの楽器でレンダリングしてWAVを書き出す
  mix       複数のWAV/AIFF/MP3/Oggトラックを重ねて正規化したWAVを書き出す
  band      設定ファイルの全パートをレンダリングし、ユーザーの録音とミックス

Common options:
  --soundfont <path>          SoundFontファイル（省略時は既定の場所を検索）
  --sample-rate <hz>          出力サンプルレート（デフォルト: 44100）
  --tail <seconds>            最後のノート後の余韻（デフォルト: 2）
  --chunk <frames>            レンダリングのチャンクサイズ（デフォルト: 64）
  --headroom <0-1>            正規化後のピーク（デフォルト: 0.8）
  --waveform <out.bmp>        波形プレビューを書き出す
  -t, --timeout <seconds>     指定秒数後に中断（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  -h, --help                  このヘルプを表示

render options:
  --notes <file>              ノート列のファイル（省略時は固定のフレーズ）
  --instrument <name>         楽器名（デフォルト: piano）
  -o <file>                   出力WAVファイル
  --midi <file>               中間MIDIファイルも書き出す

mix options:
  -o <file>                   出力WAVファイル（最初のトラックの形式に合わせる）

band options:
  --config <file>             バンド設定（JSON）

Environment Variables:
  SOUNDFONT=<path>            SoundFontファイル
  SAMPLE_RATE=<hz>            出力サンプルレート
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  bandforge render --notes piano.json --instrument piano -o piano.wav
  bandforge render --instrument percussion_drums -o drums.wav --midi drums.mid
  bandforge mix -o overall_band.wav me.wav piano.wav drums.wav
  bandforge band --config band.json --waveform band.bmp
  LOG_LEVEL=debug bandforge band --config band.json
`
