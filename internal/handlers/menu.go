package handlers

import (
	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
)

const (
	menuPrefix = "menu:"
	menuMain   = "main"
)

var menuButton = chat.Button{Label: "🏠 Menú principal", Data: menuPrefix + menuMain}

var menuEntries = []struct {
	kind  dialogue.Kind
	label string
}{
	{dialogue.KindSardine, "🐟 Sardina"},
	{dialogue.KindTable, "🍽️ Mesa de Llenado"},
	{dialogue.KindLine, "🏭 Línea de Producción"},
	{dialogue.KindPacking, "📦 Empaque"},
	{dialogue.KindSummaryByDate, "📊 Resumen por fecha"},
	{dialogue.KindPeriodReport, "🗓️ Reporte por periodo"},
	{dialogue.KindWorkerImport, "👥 Cargar trabajadores"},
}

// MainMenu lists the dialogues the user may start.
func MainMenu(isAdmin bool) chat.Prompt {
	buttons := make([]chat.Button, 0, len(menuEntries))
	for _, e := range menuEntries {
		if adminOnly[e.kind] && !isAdmin {
			continue
		}
		buttons = append(buttons, chat.Button{Label: e.label, Data: menuPrefix + string(e.kind)})
	}
	return chat.Prompt{
		Text:    "👋 Bienvenido al registro de producción. Seleccione un área:",
		Buttons: chat.Column(buttons...),
	}
}
