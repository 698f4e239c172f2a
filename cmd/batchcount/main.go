package main

import (
	"github.com/bcongdon/batchcount"
)

func main() {
	driver := batchcount.NewDriver()
	driver.Main()
}
