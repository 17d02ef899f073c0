package application

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == backLabel {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

const backLabel = "Back"

// buildMenuTree lays out groups, then containers, then one entry per page.
func buildMenuTree(m *Model, defs []core.ContainerDefinition) *Menu {
	root := &Menu{Title: "Sheet Import"}

	var group *Menu
	for _, def := range defs {
		if group == nil || group.Title != def.Info.Group {
			group = &Menu{Title: def.Info.Group}
			root.Items = append(root.Items, MenuItem{Label: def.Info.Group + " ->", Submenu: group})
		}
		group.Items = append(group.Items, MenuItem{Label: def.Info.Label + " ->", Submenu: loadContainerMenu(m, def)})
	}

	// Group submenus get their Back entry once all containers are in
	for i := range root.Items {
		sub := root.Items[i].Submenu
		sub.Items = append(sub.Items, MenuItem{Label: backLabel})
	}

	root.Items = append(root.Items, MenuItem{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }})

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadContainerMenu(m *Model, def core.ContainerDefinition) *Menu {
	key := def.Info.Key

	items := []MenuItem{
		{Label: "Import all pages", Action: func() tea.Cmd {
			return m.startImport(core.ImportRequest{Container: key, All: true})
		}},
	}
	for _, p := range def.Pages() {
		field := p.Field
		items = append(items, MenuItem{
			Label: fmt.Sprintf("Import %s (%s)", p.Page, p.Kind),
			Action: func() tea.Cmd {
				return m.startImport(core.ImportRequest{Container: key, Pages: []string{field}})
			},
		})
	}
	items = append(items, MenuItem{Label: backLabel})

	return &Menu{Title: def.Info.Label, Items: items}
}
