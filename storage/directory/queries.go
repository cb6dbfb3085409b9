package directory

const (
	lookupQuery = `
		SELECT id, members
			FROM multisigs
			WHERE members @> ARRAY[$1::text]
		ORDER BY id`

	upsertQuery = `
		INSERT INTO multisigs (id, members)
			VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
			SET members = EXCLUDED.members`
)
