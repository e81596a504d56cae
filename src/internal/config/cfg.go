package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DefaultCfgPath is where the configuration is expected if no --config flag
// is given
const DefaultCfgPath = "/etc/musicapp/config.json"

// audioSuffixes contains the audio file suffixes (lowercase, without dot)
// that are indexed by the scanner, mapped to the content type they are
// served with
var audioSuffixes = map[string]string{
	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
	"wma":  "audio/x-ms-wma",
}

// playlistSuffixes contains the playlist file suffixes that are picked up by
// the scanner
var playlistSuffixes = map[string]struct{}{
	"xspf": {},
	"m3u":  {},
	"m3u8": {},
}

// coverSuffixes contains the image suffixes that are accepted as cover art
// sidecar files
var coverSuffixes = []string{"jpg", "jpeg", "png"}

// Cfg stores the data from the configuration file
type Cfg struct {
	MusicDir                  string `json:"music_dir"`
	CacheDir                  string `json:"cache_dir"`
	AuthToken                 string `json:"auth_token"`
	EnableTranscodingCache    bool   `json:"enable_transcoding_cache"`
	CacheRefreshIntervalHours int    `json:"cache_refresh_interval_hours"`
	ComputeMissingReplayGain  bool   `json:"compute_missing_replaygain"`
	FFmpegPath                string `json:"ffmpeg_path"`
	FFprobePath               string `json:"ffprobe_path"`
	MaxTranscoders            int    `json:"max_transcoders"`
	MaxGainAnalyses           int    `json:"max_gain_analyses"`
	LogDir                    string `json:"log_dir"`
	LogLevel                  string `json:"log_level"`
}

// Suffix returns the lowercase suffix of path without the leading dot
func Suffix(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// IsAudioFile returns true if path has one of the supported audio suffixes
func IsAudioFile(path string) bool {
	_, exists := audioSuffixes[Suffix(path)]
	return exists
}

// IsPlaylistFile returns true if path is a playlist file that is relevant
// for the scanner
func IsPlaylistFile(path string) bool {
	_, exists := playlistSuffixes[Suffix(path)]
	return exists
}

// CoverSuffixes returns the image suffixes that are accepted as cover art
// sidecar files
func CoverSuffixes() []string {
	return coverSuffixes
}

// ContentTypeForSuffix returns the media type a file with the given suffix
// is served with. Unknown suffixes map to application/octet-stream
func ContentTypeForSuffix(suffix string) string {
	if ct, exists := audioSuffixes[strings.ToLower(suffix)]; exists {
		return ct
	}
	return "application/octet-stream"
}

// ScanRecordPath returns the path of the persistent scan record. It is empty
// if no cache directory is configured (which disables the record)
func (me *Cfg) ScanRecordPath() string {
	if me.CacheDir == "" {
		return ""
	}
	return filepath.Join(me.CacheDir, "scan.json")
}

// CoverCacheDir returns the directory of the cover art cache. It is empty if
// no cache directory is configured (which disables the cache)
func (me *Cfg) CoverCacheDir() string {
	if me.CacheDir == "" {
		return ""
	}
	return filepath.Join(me.CacheDir, "covers")
}

// TranscodeCacheDir returns the directory of the transcoding cache. It is
// empty if no cache directory is configured (which disables the cache)
func (me *Cfg) TranscodeCacheDir() string {
	if me.CacheDir == "" {
		return ""
	}
	return filepath.Join(me.CacheDir, "transcode")
}

// Load reads the configuration file at path and returns the config as
// structure. Defaults are applied for optional attributes
func Load(path string) (cfg Cfg, err error) {
	if path == "" {
		path = DefaultCfgPath
	}

	cfgFile, err := os.ReadFile(path)
	if err != nil {
		return Cfg{}, errors.Wrapf(err, "config file '%s' couldn't be read", path)
	}

	if err = json.Unmarshal(cfgFile, &cfg); err != nil {
		return Cfg{}, errors.Wrapf(err, "config file '%s' couldn't be unmarshalled", path)
	}

	cfg.ApplyDefaults()
	return
}

// ApplyDefaults fills optional attributes that were left empty
func (me *Cfg) ApplyDefaults() {
	if me.FFmpegPath == "" {
		me.FFmpegPath = "ffmpeg"
	}
	if me.FFprobePath == "" {
		me.FFprobePath = "ffprobe"
	}
	if me.MaxTranscoders <= 0 {
		me.MaxTranscoders = 5
	}
	if me.MaxGainAnalyses <= 0 {
		me.MaxGainAnalyses = 2
	}
	if me.LogLevel == "" {
		me.LogLevel = "info"
	}
}

// Validate checks if the configuration is complete and correct. If it's not,
// an error is returned
func (me *Cfg) Validate() (err error) {
	if err = validateDir(me.MusicDir, "music_dir"); err != nil {
		return
	}

	// the cache dir is optional; an empty value disables on-disk caching
	if me.CacheDir != "" {
		if err = validateDir(me.CacheDir, "cache_dir"); err != nil {
			return
		}
	}

	if me.MaxTranscoders < 1 {
		err = fmt.Errorf("max_transcoders must be >= 1")
		return
	}
	if me.MaxGainAnalyses < 1 {
		err = fmt.Errorf("max_gain_analyses must be >= 1")
		return
	}
	if me.CacheRefreshIntervalHours < 0 {
		err = fmt.Errorf("cache_refresh_interval_hours must not be negative")
		return
	}

	return
}

// Test reads the configuration file at path and checks it for completeness
// and consistency
func Test(path string) (err error) {
	var cfg Cfg

	if cfg, err = Load(path); err != nil {
		return
	}

	if err = cfg.Validate(); err != nil {
		return
	}

	fmt.Println("Congrats: The configuration is complete and consistent :)")
	return
}

// validateDir checks if dir exists. name is the name that is used for that
// directory in the configuration
func validateDir(dir, name string) (err error) {
	if dir == "" {
		err = fmt.Errorf("empty %s is not acceptable", name)
		return
	}
	if !filepath.IsAbs(dir) {
		err = fmt.Errorf("%s '%s' is not absolute", name, dir)
		return
	}
	info, err := os.Stat(dir)
	if err != nil {
		err = errors.Wrapf(err, "cannot check if %s '%s' exists", name, dir)
		return
	}
	if !info.IsDir() {
		err = fmt.Errorf("%s '%s' is not a directory", name, dir)
		return
	}
	return
}
