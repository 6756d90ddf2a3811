package graph

// topoOrder orders nodes so that producers come before consumers and
// dependencies before their dependents (Kahn's algorithm). Among nodes that
// are ready at the same time the earlier-declared one goes first. Nodes left
// over by a cycle are appended in declaration order.
func topoOrder(m *Model) []string {
	n := len(m.nodes)
	indeg := make([]int, n)
	out := make([][]int, n)
	link := func(from, to int) {
		out[from] = append(out[from], to)
		indeg[to]++
	}
	for _, e := range m.edges {
		from := m.byName[m.outputs[e.From].Node]
		to := m.byName[m.inputs[e.To].Node]
		if from != to {
			link(from, to)
		}
	}
	for name, deps := range m.dependsOn {
		to := m.byName[name]
		for _, d := range deps {
			if from := m.byName[d]; from != to {
				link(from, to)
			}
		}
	}

	order := make([]string, 0, n)
	placed := make([]bool, n)
	for {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		placed[next] = true
		order = append(order, m.nodes[next].Name)
		for _, v := range out[next] {
			indeg[v]--
		}
	}
	for i, p := range placed {
		if !p {
			order = append(order, m.nodes[i].Name)
		}
	}
	return order
}
