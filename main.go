// nagopanel renders assistant responses for an editor webview panel.
package main

import "github.com/linanwx/nagopanel/cmd"

func main() {
	cmd.Execute()
}
