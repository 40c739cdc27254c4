package main

import (
	"flag"
	"fmt"
	"log"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	sceneFilePath  = flag.String("scene", "", "Path to scene JSON file (camera poses, widths/heights, 2D segments)")
	configPath     = flag.String("config", "config.yaml", "Path to engine parameter YAML file")
	mode           = flag.String("mode", "all", "Pipeline stage to run: scene, match, reconstruct, export, render, or all")
	exportFormat   = flag.String("export-format", "txt", "Export format: stl, obj, or txt")
	exportOutput   = flag.String("export-output", "", "Export output path (default derived from config parameters)")
	renderOutput   = flag.String("render-output", "preview.svg", "Preview render output path")
	renderFormat   = flag.String("render-format", "svg", "Preview render format: svg or png")
	renderRefCamID = flag.Int("render-cam", 0, "Reference camera id for the preview reprojection")
)

func main() {
	flag.Parse()
	fmt.Printf("line3d version: %s\n", Version)

	if *sceneFilePath == "" {
		fmt.Println("Usage: line3d -scene scene.json [-config config.yaml] [-mode all|scene|match|reconstruct|export|render]")
		return
	}

	app := NewApp()
	if err := app.LoadParams(*configPath); err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := app.ConfigureMQTT(); err != nil {
		log.Printf("warning: mqtt setup failed: %v", err)
	}
	if err := app.LoadScene(*sceneFilePath); err != nil {
		log.Fatalf("loading scene: %v", err)
	}
	if *mode == "scene" {
		fmt.Printf("scene loaded: %d views registered\n", app.Engine.Reg.Len())
		return
	}

	runMatch := *mode == "match" || *mode == "all"
	runReconstruct := *mode == "reconstruct" || *mode == "all"
	runExport := *mode == "export" || *mode == "all"
	runRender := *mode == "render" || *mode == "all"

	if runMatch {
		app.RunMatch()
		fmt.Println("matching complete")
	}
	if runReconstruct {
		app.RunReconstruct()
		lines := app.Engine.GetLines()
		fmt.Printf("reconstruction complete: %d final lines\n", len(lines))
	}

	if runExport {
		out := *exportOutput
		if out == "" {
			out = app.OutputFilename(0) + "." + *exportFormat
		}
		if err := app.Export(*exportFormat, out); err != nil {
			log.Fatalf("export failed: %v", err)
		}
		fmt.Printf("exported %s to %s\n", *exportFormat, out)
	}

	if runRender {
		if err := app.RenderPreview(*renderOutput, *renderRefCamID, *renderFormat); err != nil {
			log.Fatalf("render failed: %v", err)
		}
		fmt.Printf("rendered preview to %s\n", *renderOutput)
	}
}
