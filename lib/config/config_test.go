package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Triple-S/smash/lib/output"
)

func TestMinimalConfig(t *testing.T) {
	f, err := ReadOutputString(`[Output]
Directory = data
Name = run`)

	assert.NoError(t, err)
	assert.Equal(t, "data", f.Directory)
	assert.Equal(t, "run", f.Name)
	assert.Equal(t, output.DefaultOptions(), f.Options)
}

func TestFullConfig(t *testing.T) {
	f, err := ReadOutputString(`[Output]
Directory = data
Name = run
WriteParticles = false
WriteCollisions = true
WriteInitialConditions = true
ParticlesOnlyFinal = true
ExtendedParticles = true
ExtendedCollisions = true
ExtendedIC = true
AutosaveFrequency = 50
Compress = true`)

	assert.NoError(t, err)
	assert.Equal(t, output.Options{
		WriteCollisions: true,
		WriteInitialConditions: true,
		ParticlesOnlyFinal: true,
		ExtendedParticles: true,
		ExtendedCollisions: true,
		ExtendedIC: true,
		AutosaveFrequency: 50,
		Compress: true,
	}, f.Options)
}

func TestMissingRequiredKeys(t *testing.T) {
	_, err := ReadOutputString(`[Output]
Name = run`)
	assert.Error(t, err)

	_, err = ReadOutputString(`[Output]
Directory = data`)
	assert.Error(t, err)
}

func TestUnknownKey(t *testing.T) {
	_, err := ReadOutputString(`[Output]
Directory = data
Name = run
WriteEverything = true`)
	assert.Error(t, err)
}

func TestExampleFileParses(t *testing.T) {
	f, err := ReadOutputString(ExampleOutputFile)
	assert.NoError(t, err)
	assert.Equal(t, "path/to/output/dir", f.Directory)
	assert.Equal(t, "run", f.Name)
	assert.Equal(t, output.DefaultOptions(), f.Options)
}

func TestReadOutputFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "output.config")
	text := `[Output]
Directory = data
Name = run
AutosaveFrequency = 10`
	assert.NoError(t, os.WriteFile(fname, []byte(text), 0666))

	f, err := ReadOutputFile(fname)
	assert.NoError(t, err)
	assert.Equal(t, 10, f.Options.AutosaveFrequency)

	_, err = ReadOutputFile(fname + ".missing")
	assert.Error(t, err)
}
