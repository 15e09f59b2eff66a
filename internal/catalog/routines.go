package catalog

import "github.com/therealutkarshpriyadarshi/ark/pkg/models"

var defaultRoutines = []models.Routine{
	{
		ID:           "foundation-wave",
		Name:         "foundation wave",
		Description:  "gentle body rolls and reach patterns to wake up every joint before class.",
		Style:        models.StyleFoundations,
		Energy:       models.EnergySlowFlow,
		Duration:     "2:30",
		VideoURL:     "/videos/taekwondo/Taegeuk 1 Il Jang.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 1 Il Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "groove-lines",
		Name:         "groove lines",
		Description:  "hip-hop inspired groove lines with clean angles and playful footwork.",
		Style:        models.StyleHipHop,
		Energy:       models.EnergyGroove,
		Duration:     "2:03",
		VideoURL:     "/videos/taekwondo/Taegeuk 2 Ee Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 2 Ee Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "floor-melt",
		Name:         "floor melt",
		Description:  "contemporary floorwork that drills fluid transitions and breath-led pace.",
		Style:        models.StyleContemporary,
		Energy:       models.EnergySlowFlow,
		Duration:     "2:12",
		VideoURL:     "/videos/taekwondo/Taegeuk 3 Sam Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 3 Sam Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "sharp-hits",
		Name:         "sharp hits",
		Description:  "crispy musicality drills that alternate fast pops with controlled pauses.",
		Style:        models.StyleHipHop,
		Energy:       models.EnergyPerformance,
		Duration:     "2:05",
		VideoURL:     "/videos/taekwondo/Taegeuk 4 Sa Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 4 Sa Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "latin-bloom",
		Name:         "latin bloom",
		Description:  "latin fusion combo built around traveling walks and grounded spirals.",
		Style:        models.StyleLatin,
		Energy:       models.EnergyGroove,
		Duration:     "2:18",
		VideoURL:     "/videos/taekwondo/Taegeuk 5 Oh Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 5 Oh Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "ballet-stride",
		Name:         "ballet stride",
		Description:  "clean ballet-inspired lines with focus on balance, turnout, and control.",
		Style:        models.StyleBallet,
		Energy:       models.EnergyPrecision,
		Duration:     "2:14",
		VideoURL:     "/videos/taekwondo/Taegeuk 6 Yook Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 6 Yook Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "fusion-drive",
		Name:         "fusion drive",
		Description:  "full-body routine that blends contemporary reach with commercial power.",
		Style:        models.StyleFusion,
		Energy:       models.EnergyPerformance,
		Duration:     "2:45",
		VideoURL:     "/videos/taekwondo/Taegeuk 7 Chil Jang June 16 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 7 Chil Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "story-arc",
		Name:         "story arc",
		Description:  "expressive contemporary piece focused on storytelling and stamina.",
		Style:        models.StyleContemporary,
		Energy:       models.EnergyPrecision,
		Duration:     "2:29",
		VideoURL:     "/videos/taekwondo/Taegeuk 8 Pal Jang June 17 2025.mp4",
		ThumbnailURL: "/videos/taekwondo/Taegeuk 8 Pal Jang.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "arcade-footwork",
		Name:         "arcade footwork",
		Description:  "playful foot switches, slides, and level changes to sharpen timing.",
		Style:        models.StyleFusion,
		Energy:       models.EnergyGroove,
		Duration:     "2:28",
		VideoURL:     "/videos/karate/Heian Shodan June 17 2025.mp4",
		ThumbnailURL: "/videos/karate/Heian Shodan.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "breath-hold",
		Name:         "breath hold",
		Description:  "slow contemporary sequence that trains control, balance, and focus.",
		Style:        models.StyleContemporary,
		Energy:       models.EnergySlowFlow,
		Duration:     "2:42",
		VideoURL:     "/videos/karate/Heian Nidan June 18 2025.mp4",
		ThumbnailURL: "/videos/karate/Heian Nidan.jpg",
		IsLocalFile:  true,
	},
	{
		ID:           "edge-lines",
		Name:         "edge lines",
		Description:  "angular shapes, broken lines, and direction changes for stage energy.",
		Style:        models.StyleHipHop,
		Energy:       models.EnergyPrecision,
		Duration:     "2:32",
		VideoURL:     "/videos/karate/Heian Sandan June 18 2025.mp4",
		ThumbnailURL: "/videos/karate/Heian Sandan.jpg",
		IsLocalFile:  true,
	},
}
