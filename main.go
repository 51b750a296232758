package main

import "civicreport/internal/app"

func main() {
	app.Main()
}
