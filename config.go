package batchcount

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
)

// indexEnvPrefix and indexEnvKey name the variable set by the array job
// scheduler: AWS_BATCH_JOB_ARRAY_INDEX.
const (
	indexEnvPrefix = "AWS_BATCH"
	indexEnvKey    = "job_array_index"
)

func loadConfig() {
	viper.SetConfigName("batchcountrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.batchcount")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("batchcount")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"verbose":             false,
		"progress":            true,
		"max_concurrency":     64,               // Maximum number of concurrent object fetches during merge
		"parse_workers":       runtime.NumCPU(), // Goroutines used to tokenize or accumulate one object
		"plan_cache_size":     16,               // Decoded plans kept between shard invocations
		"top":                 DefaultTop,
		"local_root":          "",
		"s3_region":           "",
		"s3_endpoint":         "",
		"s3_force_path_style": false,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose": "v",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}

// bindFlags binds each named flag in flags to the viper key of the same name,
// so a flag given on the command line overrides file and environment settings.
func bindFlags(flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// config configures a Driver's commands
type config struct {
	Verbose        bool
	Progress       bool
	MaxConcurrency int
	ParseWorkers   int
	PlanCacheSize  int
	Top            int
	Store          corfs.Options
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment
	return &config{
		Verbose:        viper.GetBool("verbose"),
		Progress:       viper.GetBool("progress"),
		MaxConcurrency: viper.GetInt("max_concurrency"),
		ParseWorkers:   viper.GetInt("parse_workers"),
		PlanCacheSize:  viper.GetInt("plan_cache_size"),
		Top:            viper.GetInt("top"),
		Store: corfs.Options{
			LocalRoot:      viper.GetString("local_root"),
			Region:         viper.GetString("s3_region"),
			Endpoint:       viper.GetString("s3_endpoint"),
			ForcePathStyle: viper.GetBool("s3_force_path_style"),
		},
	}
}

// resolveIndex picks the shard index from the --index flag when it was
// given and from the array job environment variable otherwise.
func resolveIndex(flagSet bool, flagValue int, env *viper.Viper) (int, error) {
	if flagSet {
		return flagValue, nil
	}

	raw := strings.TrimSpace(env.GetString(indexEnvKey))
	if raw == "" {
		return 0, errors.Wrapf(ErrIndexUnset, "pass --index or set %s_%s", indexEnvPrefix, strings.ToUpper(indexEnvKey))
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s_%s", indexEnvPrefix, strings.ToUpper(indexEnvKey))
	}
	return index, nil
}

// newIndexEnv returns a viper instance reading only the array job
// environment variables.
func newIndexEnv() *viper.Viper {
	env := viper.New()
	env.SetEnvPrefix(indexEnvPrefix)
	env.BindEnv(indexEnvKey)
	return env
}
