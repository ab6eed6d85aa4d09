package historycmder

import (
	"fmt"
	"io"

	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/utils"
)

const previewWidth = 72

func roleLabel(r conversation.Role) string {
	switch r {
	case conversation.RoleUser:
		return cliui.UserStyle.Render("you")
	case conversation.RoleAssistant:
		return cliui.AssistantStyle.Render("bot")
	default:
		return cliui.DimStyle.Render(string(r))
	}
}

// writeTurn prints one turn as a single preview line.
func writeTurn(w io.Writer, t conversation.Turn, full bool) {
	content := t.Content
	if !full {
		content = utils.Truncate(utils.OneLine(content), previewWidth)
	}

	status := ""
	switch t.Status {
	case conversation.StatusIncomplete:
		status = " " + cliui.WarnStyle.Render("[incomplete]")
	case conversation.StatusPending:
		status = " " + cliui.DimStyle.Render("[streaming]")
	}

	fmt.Fprintf(w, "  %s %s  %s%s\n",
		cliui.DimStyle.Render(t.CreatedAt.Local().Format("15:04:05")),
		roleLabel(t.Role),
		content,
		status,
	)
}
