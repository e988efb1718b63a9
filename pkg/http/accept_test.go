package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateContentType(t *testing.T) {
	for _, tc := range []struct {
		name   string
		accept []string
		prefs  []string
		want   string
	}{
		{
			name:  "no accept header gets first choice",
			prefs: []string{"application/json", "text/plain"},
			want:  "application/json",
		},
		{
			name:   "no match",
			accept: []string{"text/html;q=0.9", "image/png"},
			prefs:  []string{"application/json"},
			want:   "",
		},
		{
			name:   "equal quality gets first preference",
			accept: []string{"text/plain,application/json"},
			prefs:  []string{"application/json", "text/plain"},
			want:   "application/json",
		},
		{
			name:   "quality beats preference",
			accept: []string{"application/json;q=0.5,text/plain;q=1.0"},
			prefs:  []string{"application/json", "text/plain"},
			want:   "text/plain",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for _, a := range tc.accept {
				h.Add("Accept", a)
			}
			assert.Equal(t, tc.want, negotiateContentType(&http.Request{Header: h}, tc.prefs...))
		})
	}
}
