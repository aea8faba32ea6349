package main

import "nodewatch/internal/app"

func main() {
	app.Execute()
}
