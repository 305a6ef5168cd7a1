// @title                       Real Estate CRM API
// @version                     1.0
// @description                 Leads, site visits, reports and accounts for a real-estate sales team.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import "estatecrm/internal/app"

func main() {
	app.Run()
}
