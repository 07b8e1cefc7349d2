/*package config reads the output configuration from gcfg-style config
files. Only keys that appear in the file override the defaults, so a
minimal config just names the output location.*/
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	"github.com/Triple-S/smash/lib/output"
)

const ExampleOutputFile = `[Output]

#######################
# Required Parameters #
#######################

# Directory which the output file will be written to. It must exist and be
# writable before the run starts.
Directory = path/to/output/dir

# Base name of the output file. The file will be called <Name>.evt, with an
# ".unfinished" suffix while the run is still going.
Name = run

#######################
# Optional Parameters #
#######################

# Write the particles table. Default is true.
# WriteParticles = true

# Write the collisions table, one row per interaction. Default is false.
# WriteCollisions = false

# Write only the initial-state particle block of each event. Default is
# false.
# WriteInitialConditions = false

# Suppress the initial and intermediate particle blocks, keeping one final
# block per event. Default is false.
# ParticlesOnlyFinal = false

# Add the extended columns (formation time, cross-section scaling, process
# origins, parent species) to the corresponding output. Default is false
# for all three.
# ExtendedParticles = false
# ExtendedCollisions = false
# ExtendedIC = false

# Number of completed events between durable checkpoints. Checkpoints are
# slow, but everything written before one survives a crash. Default is
# 1000. Negative values disable checkpointing.
# AutosaveFrequency = 1000

# Compress row batches with zstd. Default is false.
# Compress = false`

// File is the parsed output configuration: where the container file goes
// and the writer options.
type File struct {
	// Directory and Name locate the container file at
	// Directory/Name + output.Ext.
	Directory, Name string
	Options output.Options
}

type rawConfig struct {
	Output struct {
		Directory, Name string
		WriteParticles, WriteCollisions bool
		WriteInitialConditions, ParticlesOnlyFinal bool
		ExtendedParticles, ExtendedCollisions, ExtendedIC bool
		AutosaveFrequency int
		Compress bool
	}
}

func defaultRawConfig() *rawConfig {
	cfg := &rawConfig{ }
	def := output.DefaultOptions()
	cfg.Output.WriteParticles = def.WriteParticles
	cfg.Output.WriteCollisions = def.WriteCollisions
	cfg.Output.AutosaveFrequency = def.AutosaveFrequency
	return cfg
}

func (cfg *rawConfig) process(source string) (*File, error) {
	out := &cfg.Output
	if out.Directory == "" {
		return nil, fmt.Errorf("The config %s doesn't set the required " +
			"'Directory' variable.", source)
	}
	if out.Name == "" {
		return nil, fmt.Errorf("The config %s doesn't set the required " +
			"'Name' variable.", source)
	}

	return &File{
		Directory: out.Directory,
		Name: out.Name,
		Options: output.Options{
			WriteParticles: out.WriteParticles,
			WriteCollisions: out.WriteCollisions,
			WriteInitialConditions: out.WriteInitialConditions,
			ParticlesOnlyFinal: out.ParticlesOnlyFinal,
			ExtendedParticles: out.ExtendedParticles,
			ExtendedCollisions: out.ExtendedCollisions,
			ExtendedIC: out.ExtendedIC,
			AutosaveFrequency: out.AutosaveFrequency,
			Compress: out.Compress,
		},
	}, nil
}

// ReadOutputFile reads an output configuration from the file at fname.
func ReadOutputFile(fname string) (*File, error) {
	cfg := defaultRawConfig()
	if err := gcfg.ReadFileInto(cfg, fname); err != nil { return nil, err }
	return cfg.process(fmt.Sprintf("file %s", fname))
}

// ReadOutputString reads an output configuration from text.
func ReadOutputString(text string) (*File, error) {
	cfg := defaultRawConfig()
	if err := gcfg.ReadStringInto(cfg, text); err != nil { return nil, err }
	return cfg.process("string")
}
