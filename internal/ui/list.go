package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/trackdrop/internal/tasks"
)

var _ list.Item = artistItem{}

// artistItem wraps [tasks.ArtistResult] to implement [list.Item].
type artistItem struct {
	result tasks.ArtistResult
}

func (i artistItem) FilterValue() string { return i.result.Artist }

func (i artistItem) Title() string {
	switch {
	case i.result.Aborted:
		return Failure("✗ " + i.result.Artist)
	case i.result.Err != nil, i.result.FetchFailed+i.result.PublishFailed > 0:
		return Warning("! " + i.result.Artist)
	default:
		return Success("✓ " + i.result.Artist)
	}
}

func (i artistItem) Description() string {
	r := i.result
	desc := fmt.Sprintf("%d published • %d skipped • %d fetch failed • %d publish failed",
		r.Published, r.Skipped, r.FetchFailed, r.PublishFailed)
	if r.Err != nil {
		desc = fmt.Sprintf("%s • %v", desc, r.Err)
	}
	return desc
}

func artistItems(results []tasks.ArtistResult) []list.Item {
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = artistItem{result: r}
	}
	return items
}
