package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ai-native-85/tinytummy/config"
	"github.com/ai-native-85/tinytummy/controllers"
	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/routes"
	"github.com/ai-native-85/tinytummy/services"
	"github.com/ai-native-85/tinytummy/utils"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config.InitDB()
	utils.InitS3()

	openAI := services.NewOpenAIClient()
	analyzer := services.NewOpenAIAnalyzer(openAI)

	hub := services.NewRealtimeHub()
	gam := services.NewGamificationService(config.DB, hub, logger)
	meals := services.NewMealService(config.DB, analyzer, gam, logger)
	nutrition := services.NewNutritionService(config.DB)

	retrieval := buildRetrieval(logger)
	completer := services.NewOpenAICompleter(openAI, os.Getenv("OPENAI_MODEL"))
	chat := services.NewChatService(config.DB, retrieval, nutrition, completer, logger)

	rek, err := services.NewRekognitionService()
	if err != nil {
		logger.Warn("rekognition unavailable, image labels disabled", zap.Error(err))
		rek = nil
	}

	r := routes.SetupRouter(routes.Controllers{
		Auth:         controllers.NewAuthController(services.NewAuthService(config.DB)),
		Children:     controllers.NewChildController(config.DB),
		Meals:        controllers.NewMealController(meals, rek, logger),
		Nutrition:    controllers.NewNutritionController(nutrition),
		Gamification: controllers.NewGamificationController(gam),
		Chat:         controllers.NewChatController(chat),
		Realtime:     controllers.NewRealtimeController(hub),
	})

	if err := r.Run(":8080"); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// buildRetrieval wires the vector path when an API key is available and
// always keeps the fulltext fallback behind it.
func buildRetrieval(logger *zap.Logger) *services.RetrievalService {
	fallback := services.NewFulltextRetriever(config.DB)

	vector, err := services.NewVectorRetriever()
	if err != nil {
		logger.Warn("vector retrieval disabled", zap.Error(err))
		return services.NewRetrievalService(nil, fallback, logger)
	}

	var guidelines []models.NutritionGuideline
	if err := config.DB.Where("is_active = ?", true).Find(&guidelines).Error; err != nil {
		logger.Warn("guideline load failed", zap.Error(err))
	} else if err := vector.IndexGuidelines(context.Background(), guidelines); err != nil {
		logger.Warn("guideline indexing failed", zap.Error(err))
	}

	return services.NewRetrievalService(vector, fallback, logger)
}
