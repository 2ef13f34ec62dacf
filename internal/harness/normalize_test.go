package harness

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const events = `{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"github.com/matrix-org/complement/tests"}
{"Action":"run","Test":"TestLogin"}
{"Action":"output","Test":"TestLogin","Output":"=== RUN TestLogin\n"}
{"Action":"pass","Test":"TestLogin","Elapsed":0.5}
{"Action":"fail","Test":"TestFederation/parallel/send","Elapsed":1.2}
{"Action":"skip","Test":"TestAdmin"}
{"Action":"pass","Test":null}
{"Action":"pass","Test":""}
{"Action":"fail","Package":"github.com/matrix-org/complement/tests","Elapsed":30}
{"Action":"pause","Test":"TestLogin"}
this is not json

{"Action":"pass","Test":"TestLogin","Elapsed":0.4}
{"Action":"pass","Test":"TestA<b>&c"}
`

func TestNormalizeFiltersAndSorts(t *testing.T) {
	var out bytes.Buffer
	sum, err := Normalize(strings.NewReader(events), &out)
	require.NoError(t, err)

	want := strings.Join([]string{
		`{"Action":"fail","Test":"TestFederation/parallel/send"}`,
		`{"Action":"pass","Test":"TestA<b>&c"}`,
		`{"Action":"pass","Test":"TestLogin"}`,
		`{"Action":"pass","Test":"TestLogin"}`,
		`{"Action":"skip","Test":"TestAdmin"}`,
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())

	assert.Equal(t, Summary{Pass: 3, Fail: 1, Skip: 1, Discarded: 8}, sum)
	assert.Equal(t, 5, sum.Total())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	var once, twice bytes.Buffer
	_, err := Normalize(strings.NewReader(events), &once)
	require.NoError(t, err)
	_, err = Normalize(bytes.NewReader(once.Bytes()), &twice)
	require.NoError(t, err)
	assert.Equal(t, once.String(), twice.String())
}

func TestNormalizeOrderIndependent(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(events), "\n")
	reversed := make([]string, len(lines))
	for i, l := range lines {
		reversed[len(lines)-1-i] = l
	}

	var a, b bytes.Buffer
	_, err := Normalize(strings.NewReader(events), &a)
	require.NoError(t, err)
	_, err = Normalize(strings.NewReader(strings.Join(reversed, "\n")), &b)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestNormalizeEmpty(t *testing.T) {
	var out bytes.Buffer
	sum, err := Normalize(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Zero(t, sum.Total())
}

func TestNormalizeLastLineWithoutNewline(t *testing.T) {
	var out bytes.Buffer
	_, err := Normalize(strings.NewReader(`{"Action":"skip","Test":"TestX"}`), &out)
	require.NoError(t, err)
	assert.Equal(t, `{"Action":"skip","Test":"TestX"}`+"\n", out.String())
}
