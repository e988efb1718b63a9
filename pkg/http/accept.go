package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

const (
	contentJSON = "application/json"
	contentText = "text/plain"
)

// negotiateContentType returns whichever of offers the request's
// Accept header ranks highest, ties going to the earlier offer. With
// no Accept header it's the first offer; with nothing acceptable, "".
func negotiateContentType(r *http.Request, offers ...string) string {
	accepted := header.ParseAccept(r.Header, "Accept")
	if len(accepted) == 0 {
		return offers[0]
	}

	rank := func(value string) int {
		for i, o := range offers {
			if o == value {
				return i
			}
		}
		return -1
	}
	var candidates []header.AcceptSpec
	for _, a := range accepted {
		if rank(a.Value) >= 0 {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Q != candidates[j].Q {
			return candidates[i].Q > candidates[j].Q
		}
		return rank(candidates[i].Value) < rank(candidates[j].Value)
	})
	return candidates[0].Value
}
