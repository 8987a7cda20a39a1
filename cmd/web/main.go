// @title           Disaster Response API
// @version         1.0
// @description     Отчеты о бедствиях, назначение спасателей и уведомления.
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Bearer <JWT>

package main

import "disaster_backend/internal/app"

func main() {
	app.Run()
}
