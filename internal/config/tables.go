package config

// Default dispatch tables. Keys of the mapping table are bracketed marker
// codes as they appear in monitored text; agent lists are in preference
// order.

func defaultSignalAgents() map[string][]string {
	return map[string][]string{
		"[bb]": {"robo-developer", "robo-devops-sre"},
		"[hf]": {"robo-developer"},
		"[cr]": {"robo-developer", "robo-qa"},
		"[mg]": {"robo-developer"},
		"[dp]": {"robo-ux", "robo-developer"},
		"[tp]": {"robo-qa"},
		"[tf]": {"robo-qa", "robo-developer"},
		"[qa]": {"robo-qa"},
		"[rg]": {"robo-qa", "robo-developer"},
		"[da]": {"robo-ux"},
		"[pr]": {"robo-system-analyst"},
		"[sc]": {"robo-system-analyst"},
		"[rq]": {"robo-system-analyst"},
		"[ci]": {"robo-devops-sre", "robo-developer"},
		"[dg]": {"robo-devops-sre"},
		"[ir]": {"robo-devops-sre"},
		"[mo]": {"robo-devops-sre"},
		"[ux]": {"robo-ux"},
		"[ac]": {"robo-ux"},
	}
}

func defaultSignalPriority() map[string]int {
	return map[string]int{
		"bb": 9,
		"hf": 10,
		"cr": 6,
		"mg": 5,
		"dp": 2,
		"tp": 4,
		"tf": 8,
		"qa": 6,
		"rg": 9,
		"da": 3,
		"pr": 5,
		"sc": 7,
		"rq": 6,
		"ci": 9,
		"dg": 7,
		"ir": 10,
		"mo": 8,
		"ux": 5,
		"ac": 6,
	}
}

func defaultCapacity() map[string]int {
	return map[string]int{
		"robo-developer":      3,
		"robo-qa":             3,
		"robo-system-analyst": 2,
		"robo-devops-sre":     2,
		"robo-ux":             2,
	}
}
