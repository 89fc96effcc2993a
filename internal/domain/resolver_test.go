package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "www prefix", in: "http://www.charlottesecondary.org/", want: "charlottesecondary.org"},
		{name: "path", in: "https://www.socratesacademy.us/our-school", want: "socratesacademy.us"},
		{name: "multi-label suffix", in: "https://www.example.co.uk/about", want: "example.co.uk"},
		{name: "subdomain", in: "https://ggcs.cyberschool.com/", want: "cyberschool.com"},
		{name: "no scheme", in: "www.example.org/x", want: "example.org"},
		{name: "port and query", in: "http://WWW.Example.org:8080/a?b=c#d", want: "example.org"},
		{name: "ip literal", in: "http://127.0.0.1:53211/page", want: "127.0.0.1"},
		{name: "single label", in: "http://localhost/", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIsStable(t *testing.T) {
	t.Parallel()

	variants := []string{
		"http://www.example.org",
		"https://www.example.org/",
		"http://www.example.org/?q=1",
		"https://example.org/path/to/page/",
	}
	for _, v := range variants {
		got, err := Resolve(v)
		require.NoError(t, err, v)
		assert.Equal(t, "example.org", got, v)
	}
}

func TestResolveMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "http://", "http://%zz/", "https:///path"} {
		_, err := Resolve(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedURL), "input %q: %v", in, err)
	}
}

