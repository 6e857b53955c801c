package nuget

import (
	"encoding/json"
	"strings"
)

// Resource types of the service index this adapter uses.
const (
	typeSearch        = "SearchQueryService"
	typeRegistrations = "RegistrationsBaseUrl"
	typePackageBase   = "PackageBaseAddress/3.0.0"
)

type serviceIndex struct {
	Version   string     `json:"version"`
	Resources []resource `json:"resources"`
}

type resource struct {
	ID   string `json:"@id"`
	Type string `json:"@type"`
}

// find returns the first resource whose type starts with typ, so that
// versioned types ("SearchQueryService/3.5.0") match the plain name.
func (ix *serviceIndex) find(typ string) string {
	for _, r := range ix.Resources {
		if r.Type == typ || strings.HasPrefix(r.Type, typ+"/") {
			return r.ID
		}
	}
	return ""
}

type searchResponse struct {
	TotalHits int            `json:"totalHits"`
	Data      []searchResult `json:"data"`
}

type searchResult struct {
	ID             string  `json:"id"`
	Version        string  `json:"version"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	IconURL        string  `json:"iconUrl"`
	Authors        authors `json:"authors"`
	TotalDownloads int     `json:"totalDownloads"`
}

type registrationIndex struct {
	Items []registrationPage `json:"items"`
}

type registrationPage struct {
	ID    string             `json:"@id"`
	Items []registrationLeaf `json:"items"`
}

type registrationLeaf struct {
	CatalogEntry   catalogEntry `json:"catalogEntry"`
	PackageContent string       `json:"packageContent"`
}

type catalogEntry struct {
	ID                string            `json:"id"`
	Version           string            `json:"version"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Authors           authors           `json:"authors"`
	LicenseExpression string            `json:"licenseExpression"`
	ProjectURL        string            `json:"projectUrl"`
	Listed            *bool             `json:"listed"`
	DependencyGroups  []dependencyGroup `json:"dependencyGroups"`
}

type dependencyGroup struct {
	Dependencies []dependency `json:"dependencies"`
}

type dependency struct {
	ID    string `json:"id"`
	Range string `json:"range"`
}

// authors is a comma separated list; feeds send either a string or an
// array of strings.
type authors string

func (a *authors) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = authors(strings.TrimSpace(s))
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = authors(strings.Join(list, ", "))
	return nil
}

// first returns the first listed author, which the feed uses as the
// library's distributor.
func (a authors) first() string {
	s, _, _ := strings.Cut(string(a), ",")
	return strings.TrimSpace(s)
}

// minVersion returns the lower bound of a NuGet version range such as
// "[1.2.0.0, )" or "1.2.0.0". An open lower bound yields "".
func minVersion(r string) string {
	r = strings.TrimSpace(r)
	if r == "" {
		return ""
	}
	if r[0] != '[' && r[0] != '(' {
		return r
	}
	low, _, _ := strings.Cut(r[1:], ",")
	low = strings.TrimSpace(strings.TrimRight(low, "])"))
	return low
}
