package handlers

import (
	"trivia-duel-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupGameRoutes wires the duel endpoints: connect, question/answer cycle,
// match result and the win ranking.
func SetupGameRoutes(app *fiber.App, matchService *services.MatchService, questionService *services.QuestionService, resultService *services.ResultService) {
	app.Post("/connect", matchService.Connect)
	app.Get("/question", questionService.NextQuestion)
	app.Post("/answer", questionService.SubmitAnswer)
	app.Get("/result", resultService.GetResult)
	app.Get("/ranking", matchService.Ranking)
}
