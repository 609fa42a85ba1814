package holdings

// InstrumentType is the instrument column of a holdings table.
// Only Equity holdings are tracked; every other value is carried through verbatim.
type InstrumentType string

// Equity is the only instrument type resolved to a stock snapshot
const Equity InstrumentType = "Equity"

// Record is one row of a fund's holdings table
type Record struct {
	Name          string         `json:"name"`
	Sector        string         `json:"sector"`
	Instrument    InstrumentType `json:"instrument"`
	AssetsPercent float64        `json:"assets_percent"`
	Link          string         `json:"link,omitempty"`
}

// IsTrackable reports whether the holding becomes a stock candidate
func (r Record) IsTrackable() bool {
	return r.Instrument == Equity && r.AssetsPercent > 0 && r.Link != ""
}

// Candidate is a stock queued for snapshot enrichment.
// OriginalIndex is assigned once, before any concurrent dispatch,
// and is the only key used to put asynchronous results back in place.
type Candidate struct {
	Link          string
	Name          string
	OriginalIndex int
}

// Flatten turns per-fund holdings into a candidate list. Funds are walked in
// the given order and rows in table order; a link already seen is skipped.
// Indices are assigned in flattening order, so the output is deterministic
// for a deterministic input.
func Flatten(funds ...[]Record) []Candidate {
	seen := make(map[string]struct{})
	var out []Candidate
	for _, records := range funds {
		for _, r := range records {
			if !r.IsTrackable() {
				continue
			}
			if _, dup := seen[r.Link]; dup {
				continue
			}
			seen[r.Link] = struct{}{}
			out = append(out, Candidate{
				Link:          r.Link,
				Name:          r.Name,
				OriginalIndex: len(out),
			})
		}
	}
	return out
}
