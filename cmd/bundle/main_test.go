package main

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsCollectsEntrySpecifiers(t *testing.T) {
	entries, opts, _, _, err := parseArgs([]string{"./a.js", "./b.js"})
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.Equal(t, []string{"./a.js", "./b.js"}, entries.Order)
}

func TestParseArgsHelpReturnsEmptyOrder(t *testing.T) {
	entries, opts, _, _, err := parseArgs([]string{"--help"})
	require.NoError(t, err)
	assert.Nil(t, opts)
	assert.Nil(t, entries.Order)
}

func TestParseArgsNoSpecifiersReturnsEmptyOrder(t *testing.T) {
	entries, opts, _, _, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, opts)
	assert.Nil(t, entries.Order)
}

func TestParseArgsRejectsUnknownFlag(t *testing.T) {
	_, _, _, _, err := parseArgs([]string{"--bogus"})
	assert.Error(t, err)
}

func TestParseArgsRejectsInvalidCacheExpiry(t *testing.T) {
	_, _, _, _, err := parseArgs([]string{"--cache-expiry=notanumber"})
	assert.Error(t, err)
}

func TestParseArgsParsesManualChunkFlag(t *testing.T) {
	_, _, manual, _, err := parseArgs([]string{"--manual-chunk:vendor=a.js,b.js", "./entry.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor"}, manual.Names)
	assert.Equal(t, []string{"a.js", "b.js"}, manual.ByName["vendor"])
}

func TestParseArgsRejectsMalformedManualChunkFlag(t *testing.T) {
	_, _, _, _, err := parseArgs([]string{"--manual-chunk:vendor"})
	assert.Error(t, err)
}

func TestParseArgsSetsInlineDynamicAndPreserveModules(t *testing.T) {
	_, opts, _, inlineDynamic, err := parseArgs([]string{"--inline-dynamic", "--preserve-modules", "./entry.js"})
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.True(t, inlineDynamic)
	assert.True(t, opts.PreserveModules)
}

func TestParseArgsSetsPreserveEntrySignatures(t *testing.T) {
	_, opts, _, _, err := parseArgs([]string{"--preserve-entry-signatures", "./entry.js"})
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.Equal(t, config.PreserveSignatureStrict, opts.PreserveEntrySignatures)
}

func TestParseArgsExternalFlagMarksSpecifierExternal(t *testing.T) {
	_, opts, _, _, err := parseArgs([]string{"--external:left-pad", "./entry.js"})
	require.NoError(t, err)
	require.NotNil(t, opts)
	require.NotNil(t, opts.External)
	assert.True(t, opts.External("left-pad", "", false))
	assert.False(t, opts.External("right-pad", "", false))
}
