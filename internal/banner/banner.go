package banner

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

func Print() {
	ptermLogo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("Hook", pterm.NewRGB(0, 153, 204)),
		putils.LettersFromStringWithRGB("Recv", pterm.NewRGB(255, 107, 53))).
		Srender()

	pterm.DefaultCenter.Print(ptermLogo)

	pterm.DefaultCenter.Print(
		pterm.DefaultHeader.
			WithFullWidth().
			WithBackgroundStyle(pterm.NewStyle(pterm.BgLightBlue)).
			WithMargin(5).
			Sprint(pterm.White("Webhook Receiver - Local webhook debugging server")),
	)

	pterm.Info.Println(
		"Receives requests on any path and method, detects GitHub, Stripe and Slack payloads." +
			"\nVersion 0.1.0.",
	)
}

// PrintEndpoints lists the routes served at baseURL
func PrintEndpoints(baseURL string) {
	pterm.Info.Println("Endpoints:")
	_ = pterm.DefaultBulletList.WithItems([]pterm.BulletListItem{
		{Level: 0, Text: "GET    " + baseURL + "/          - Status"},
		{Level: 0, Text: "GET    " + baseURL + "/_history  - View history"},
		{Level: 0, Text: "GET    " + baseURL + "/_history/:id - View one request"},
		{Level: 0, Text: "DELETE " + baseURL + "/_history  - Clear history"},
		{Level: 0, Text: "GET    " + baseURL + "/_export   - Download snapshot"},
		{Level: 0, Text: "POST   " + baseURL + "/_snapshot - Write snapshot to save path"},
		{Level: 0, Text: "GET    " + baseURL + "/_stream   - Live feed (SSE)"},
		{Level: 0, Text: "*      " + baseURL + "/*         - Receive webhooks"},
	}).Render()
	pterm.Info.Println("Press CTRL+C to stop")
}
