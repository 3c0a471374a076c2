// Command autosmm はAutoSMMのAPIサーバー・ワーカー・マイグレーションを起動する。
//
//	autosmm [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/hitoshi/autosmm/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "autosmm: %v\n", err)
		os.Exit(1)
	}
}
