package configerr

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryStartsEmpty(t *testing.T) {
	var r Registry
	assert.Empty(t, r.List())
}

func TestRegistryReportAndList(t *testing.T) {
	var r Registry
	r.Report("collation", "unknown locale \"xx-\"")
	r.Report("store", "unknown backend")

	got := r.List()
	require.Len(t, got, 2)
	assert.Equal(t, Error{Name: "collation", Message: "unknown locale \"xx-\""}, got[0])
	assert.Equal(t, "store", got[1].Name)

	// List returns a copy.
	got[0].Name = "changed"
	assert.Equal(t, "collation", r.List()[0].Name)

	r.Reset()
	assert.Empty(t, r.List())
}

func TestRegistryConcurrentReports(t *testing.T) {
	var r Registry
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Report(fmt.Sprintf("w%d", i), fmt.Sprintf("msg %d", j))
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.List(), 1000)
}

func TestDefaultRegistry(t *testing.T) {
	t.Cleanup(Default.Reset)
	Default.Reset()
	Report("log", "bad level")
	require.Len(t, List(), 1)
	assert.Equal(t, "log", List()[0].Name)
}
