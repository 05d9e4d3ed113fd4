package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct{ name string }

func (f *fakeStrategy) GetOptions() Options                      { return New() }
func (f *fakeStrategy) SetOptions(Options) error                 { return nil }
func (f *fakeStrategy) GetConfiguration() Options                { return New() }
func (f *fakeStrategy) Search(EvalFunc, *StopToken) SearchResult { return SearchResult{} }
func (f *fakeStrategy) Clone() Strategy                          { cp := *f; return &cp }
func (f *fakeStrategy) SetName(prefix string)                    { f.name = prefix }
func (f *fakeStrategy) Name() string                             { return f.name }

func TestRegistry_RegisterAndInstantiate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("fake", func() Strategy { return &fakeStrategy{} })

	s, err := r.Instantiate("fake")
	require.NoError(t, err)
	assert.IsType(t, &fakeStrategy{}, s)
}

func TestRegistry_UnknownID(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Instantiate("nope")
	assert.Error(t, err)
}

func TestRegistry_Names_Sorted(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("zzz", func() Strategy { return &fakeStrategy{} })
	r.Register("aaa", func() Strategy { return &fakeStrategy{} })
	assert.Equal(t, []string{"aaa", "zzz"}, r.Names())
}

func TestRegistry_InstancesIndependent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("fake", func() Strategy { return &fakeStrategy{} })
	a, _ := r.Instantiate("fake")
	b, _ := r.Instantiate("fake")
	a.SetName("a-name")
	assert.Equal(t, "a-name", a.Name())
	assert.Equal(t, "", b.Name())
}
