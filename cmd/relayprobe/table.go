package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func renderResults(results []result, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if colorize {
		tw.SetStyle(table.StyleColoredBright)
	}

	tw.AppendHeader(table.Row{"#", "Endpoint", "Protocol", "Health", "Latency", "Now playing"})
	for i, r := range results {
		health := "down"
		if r.healthy {
			health = "ok"
		}
		if colorize {
			colour := text.FgRed
			if r.healthy {
				colour = text.FgGreen
			}
			health = colour.Sprint(health)
		}

		role := strconv.Itoa(i)
		if i == 0 {
			role = "primary"
		}

		tw.AppendRow(table.Row{role, r.endpoint.Name(), string(r.endpoint.Protocol), health, r.latency.Round(time.Millisecond).String(), r.title})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
