package storage

import "context"

// SourceStats summarizes stored data per provider source.
type SourceStats struct {
	Source   string
	Users    int
	Titles   int
	Matched  int
	Mappings int
}

// Stats is what `db stats` prints.
type Stats struct {
	Releases  int
	Reviews   int
	Snapshots int
	Sources   []SourceStats
}

func (d *DB) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	for _, c := range []struct {
		q   string
		dst *int
	}{
		{"SELECT COUNT(*) FROM releases", &st.Releases},
		{"SELECT COUNT(*) FROM match_reviews", &st.Reviews},
		{"SELECT COUNT(*) FROM score_snapshots", &st.Snapshots},
	} {
		if err := d.sql.QueryRowContext(ctx, c.q).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT
			p.source,
			COUNT(DISTINCT p.user_id),
			COUNT(*),
			COUNT(p.release_id),
			(SELECT COUNT(*) FROM provider_mappings m WHERE m.source = p.source)
		FROM
			progress p
		GROUP BY
			p.source
		ORDER BY
			p.source;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.Source, &s.Users, &s.Titles, &s.Matched, &s.Mappings); err != nil {
			return nil, err
		}
		st.Sources = append(st.Sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return st, nil
}
