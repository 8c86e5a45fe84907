package cfg

import (
	"app/db"
	"app/internal/app/api"
	"app/pkg/tts"
)

type Config struct {
	Api api.Config `yaml:"api"`

	LocalTTS  tts.LocalConfig  `yaml:"local_tts"`
	GoogleTTS tts.GoogleConfig `yaml:"google_tts"`

	DB db.Config `yaml:"db"`

	StaticDir string `yaml:"static_dir"`
}
