package ozon

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Widget-state key prefixes identifying the semantic role of each fragment
const (
	breadcrumbsPrefix     = "breadCrumbs-"
	stickyProductPrefix   = "webStickyProducts-"
	characteristicsPrefix = "webCharacteristics-"
	descriptionPrefix     = "webDescription-"
	tileGridPrefix        = "state-tileGridDesktop-"
	filtersPrefix         = "state-filtersDesktop-"
)

// widget is one named JSON fragment of a page payload
type widget struct {
	Key   string
	Value []byte
}

// parseWidgetStates returns the non-empty widget states of a page JSON payload in
// document order. A malformed payload yields no widgets.
func parseWidgetStates(body string) []widget {
	var page struct {
		WidgetStates json.RawMessage `json:"widgetStates"`
	}
	if err := json.Unmarshal([]byte(body), &page); err != nil || len(page.WidgetStates) == 0 {
		return nil
	}

	var widgets []widget
	for _, entry := range objectEntries(page.WidgetStates) {
		value := unwrapState(entry.Value)
		if isEmptyState(value) {
			continue
		}
		widgets = append(widgets, widget{Key: entry.Key, Value: value})
	}
	return widgets
}

// objectEntries decodes a JSON object into its members in document order.
// Decoding stops at the first malformed member.
func objectEntries(raw []byte) []widget {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var entries []widget
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return entries
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return entries
		}
		entries = append(entries, widget{Key: key, Value: value})
	}
	return entries
}

// unwrapState returns the JSON document carried by a widget value. Values are
// normally JSON-encoded strings; inline objects are accepted as they are.
func unwrapState(raw json.RawMessage) []byte {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return []byte(s)
		}
	}
	return raw
}

func isEmptyState(v []byte) bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "{}" || s == "null"
}

type breadcrumbsState struct {
	Breadcrumbs []struct {
		Text string `json:"text"`
	} `json:"breadcrumbs"`
}

// lastBreadcrumb returns the text of the deepest breadcrumb
func lastBreadcrumb(value []byte) (string, bool) {
	var s breadcrumbsState
	if err := json.Unmarshal(value, &s); err != nil || len(s.Breadcrumbs) == 0 {
		return "", false
	}
	return s.Breadcrumbs[len(s.Breadcrumbs)-1].Text, true
}

type stickyProductState struct {
	SKU  flexInt `json:"sku"`
	Name string  `json:"name"`
}

func decodeStickyProduct(value []byte) (stickyProductState, bool) {
	var s stickyProductState
	if err := json.Unmarshal(value, &s); err != nil {
		return stickyProductState{}, false
	}
	return s, true
}

type characteristicsState struct {
	Characteristics []json.RawMessage `json:"characteristics"`
}

type characteristicEntry struct {
	Name   string `json:"name"`
	Values []struct {
		Text string `json:"text"`
	} `json:"values"`
}

type descriptionState struct {
	RichAnnotationType *string `json:"richAnnotationType"`
	RichAnnotation     string  `json:"richAnnotation"`
	RichAnnotationJSON struct {
		Content []struct {
			Blocks []struct {
				Text struct {
					Content []json.RawMessage `json:"content"`
				} `json:"text"`
			} `json:"blocks"`
		} `json:"content"`
	} `json:"richAnnotationJson"`
	Characteristics []struct {
		Title   json.RawMessage `json:"title"`
		Content json.RawMessage `json:"content"`
	} `json:"characteristics"`
}

type tileGridState struct {
	Items []tileState `json:"items"`
}

type tileState struct {
	SKU    flexInt `json:"sku"`
	Action struct {
		Link string `json:"link"`
	} `json:"action"`
	MainState []map[string]json.RawMessage `json:"mainState"`
	TileImage struct {
		Items []struct {
			Image struct {
				Link string `json:"link"`
			} `json:"image"`
		} `json:"items"`
	} `json:"tileImage"`
}

type testInfo struct {
	AutomatizationID string `json:"automatizationId"`
}

type labelListState struct {
	Items []struct {
		TestInfo testInfo `json:"testInfo"`
		Title    string   `json:"title"`
	} `json:"items"`
}

type textAtomState struct {
	TestInfo testInfo `json:"testInfo"`
	Text     string   `json:"text"`
}

type priceState struct {
	Price []struct {
		TextStyle string `json:"textStyle"`
		Text      string `json:"text"`
	} `json:"price"`
}

type filtersState struct {
	Sections []struct {
		Filters []struct {
			Key                  string `json:"key"`
			MultipleRangesFilter struct {
				RangeFilter struct {
					MinValue flexFloat `json:"minValue"`
					MaxValue flexFloat `json:"maxValue"`
				} `json:"rangeFilter"`
			} `json:"multipleRangesFilter"`
		} `json:"filters"`
	} `json:"sections"`
}

// flexInt accepts a JSON number or a numeric string; anything else decodes to 0
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if fl, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			n = int64(fl)
		}
	}
	*f = flexInt(n)
	return nil
}

// flexFloat accepts a JSON number or a numeric string; anything else decodes to 0
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

// rawText renders a JSON scalar as text: strings are unquoted, null is empty
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
