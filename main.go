package main

import "github.com/findcloutintern/kimigate/cmd"

func main() {
	cmd.Execute()
}
