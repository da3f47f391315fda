package hostcall

// BindMetadata registers every read-only metadata call named in spec
// §4.4: message/program identity, block info, and the random seed.
func BindMetadata(t *Table) {
	t.Bind(NameSize, func(ext Externalities, args Args) (any, error) {
		return ext.Messaging().Size(), nil
	})
	t.Bind(NameRead, func(ext Externalities, args Args) (any, error) {
		return ext.Messaging().Read(), nil
	})
	t.Bind(NameSource, func(ext Externalities, args Args) (any, error) {
		return ext.Messaging().Source(), nil
	})
	t.Bind(NameValue, func(ext Externalities, args Args) (any, error) {
		return ext.Messaging().Value(), nil
	})
	t.Bind(NameValueAvailable, func(ext Externalities, args Args) (any, error) {
		return ext.Blockchain().ValueAvailable(), nil
	})
	t.Bind(NameBlockHeight, func(ext Externalities, args Args) (any, error) {
		return ext.Blockchain().BlockHeight(), nil
	})
	t.Bind(NameBlockTimestamp, func(ext Externalities, args Args) (any, error) {
		return ext.Blockchain().BlockTimestamp(), nil
	})
	t.Bind(NameMessageId, func(ext Externalities, args Args) (any, error) {
		return ext.Blockchain().MessageId(), nil
	})
	t.Bind(NameProgramId, func(ext Externalities, args Args) (any, error) {
		return ext.Blockchain().ProgramId(), nil
	})
	t.Bind(NameStatusCode, func(ext Externalities, args Args) (any, error) {
		code, ok := ext.Blockchain().StatusCode()
		if !ok {
			return nil, ErrOutOfBounds
		}
		return code, nil
	})
	t.Bind(NameRandom, func(ext Externalities, args Args) (any, error) {
		subject, _ := args[ArgPayload].([]byte)
		seed, bn := ext.Blockchain().Random(subject)
		return [2]any{seed, bn}, nil
	})
	t.Bind(NameGasAvailable, func(ext Externalities, args Args) (any, error) {
		return ext.Control().GasAvailable(), nil
	})
}
