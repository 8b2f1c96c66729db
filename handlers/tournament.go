package handlers

import (
	"trivia-duel-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupTournamentRoutes wires the elimination bracket endpoints.
func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	app.Post("/tournament/join", tournamentService.Join)
	app.Get("/tournament/status/:id", tournamentService.Status)
	app.Post("/tournament/match/winner", tournamentService.ReportWinner)
}
